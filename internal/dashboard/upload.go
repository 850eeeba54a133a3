package dashboard

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	applog "gastos/internal/log"
)

const (
	importSuccessFormat = "%d gastos importados correctamente"
	importErrorText     = "Error al importar el archivo"
)

// AcceptedExtensions lists the file types the upload control offers.
var AcceptedExtensions = []string{".csv", ".xlsx", ".xls"}

// AcceptsFile judges a file by its extension only, case-insensitively.
func AcceptsFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AcceptedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

type Message struct {
	Kind MessageKind
	Text string
}

// Upload is the file upload control: one request at a time, one message
// after each attempt.
type Upload struct {
	mu      sync.Mutex
	busy    bool
	message *Message
}

// Begin marks the control busy. It returns false if a request is already in
// flight.
func (u *Upload) Begin() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.busy {
		return false
	}
	u.busy = true
	u.message = nil
	return true
}

// Finish records the outcome of an attempt and clears the busy flag.
func (u *Upload) Finish(imported int, err error) Message {
	msg := Message{Kind: MessageSuccess, Text: fmt.Sprintf(importSuccessFormat, imported)}
	if err != nil {
		msg = Message{Kind: MessageError, Text: importErrorText}
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.busy = false
	u.message = &msg
	return msg
}

func (u *Upload) Busy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.busy
}

// Message returns the outcome of the last attempt, if any.
func (u *Upload) Message() (Message, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.message == nil {
		return Message{}, false
	}
	return *u.message, true
}

// Submit runs one upload through the store. It returns false without doing
// anything while another upload is in flight. Files with an unaccepted
// extension fail without reaching the server.
func (u *Upload) Submit(ctx context.Context, store *Store, filename string, r io.Reader) (Message, bool) {
	if !u.Begin() {
		return Message{}, false
	}
	if !AcceptsFile(filename) {
		return u.Finish(0, fmt.Errorf("unsupported file %q", filename)), true
	}
	result, err := store.Import(ctx, filename, r)
	if err != nil {
		store.logger.ErrorContext(ctx, "Import failed",
			applog.FieldOperation, applog.OpImport,
			applog.FieldFile, filename,
			applog.FieldError, err)
	}
	return u.Finish(result.Imported, err), true
}
