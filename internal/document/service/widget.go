package service

import (
	"context"
	"sync"
)

// Widget is what the session needs from the rich-text editor.
type Widget interface {
	// OnReady registers fn to run once the editor can accept content.
	OnReady(fn func())
	GetContent(ctx context.Context) (string, error)
	SetContent(ctx context.Context, content string) error
	// RegisterAction adds a menu or toolbar entry that runs fn.
	RegisterAction(name string, fn func())
}

// Notifier is implemented by widgets that can show a message to the user.
type Notifier interface {
	Notify(level, message string)
}

// Prompter is implemented by widgets that can open a dialog in the page.
type Prompter interface {
	Prompt(dialog string)
}

const (
	NoticeInfo  = "info"
	NoticeError = "error"
)

// MemoryWidget is a headless editor buffer, used by the command line and in tests.
type MemoryWidget struct {
	mu      sync.Mutex
	content string
	ready   []func()
	actions map[string]func()
	notices []string
	prompts []string
}

func NewMemoryWidget() *MemoryWidget {
	return &MemoryWidget{actions: make(map[string]func())}
}

func (w *MemoryWidget) OnReady(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = append(w.ready, fn)
}

// Ready runs the registered ready callbacks.
func (w *MemoryWidget) Ready() {
	w.mu.Lock()
	fns := append([]func(){}, w.ready...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (w *MemoryWidget) GetContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.content, nil
}

func (w *MemoryWidget) SetContent(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.content = content
	return nil
}

// Type simulates the user editing the buffer.
func (w *MemoryWidget) Type(content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.content = content
}

func (w *MemoryWidget) RegisterAction(name string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.actions[name] = fn
}

// Trigger runs a registered action and reports whether it exists.
func (w *MemoryWidget) Trigger(name string) bool {
	w.mu.Lock()
	fn, ok := w.actions[name]
	w.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

func (w *MemoryWidget) Notify(level, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notices = append(w.notices, level+": "+message)
}

func (w *MemoryWidget) Notices() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.notices...)
}

func (w *MemoryWidget) Prompt(dialog string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prompts = append(w.prompts, dialog)
}

func (w *MemoryWidget) Prompts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.prompts...)
}
