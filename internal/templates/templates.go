// Package templates renders chat transcript entries for the terminal.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"text/template"
)

//go:embed text/*.tmpl
var content embed.FS

// Templates manages the transcript templates
type Templates struct {
	message    *template.Template
	signIn     *template.Template
	typing     *template.Template
	status     *template.Template
	deviceCode *template.Template
}

// TemplateError wraps a rendering failure
type TemplateError struct {
	Cause   error
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// LoadTemplates loads and parses all transcript templates
func LoadTemplates() (*Templates, error) {
	t := &Templates{}
	var err error

	// Load bot message template
	if t.message, err = template.ParseFS(content, "text/message.tmpl", "text/layout.tmpl"); err != nil {
		return nil, err
	}

	// Load sign-in fallback template
	if t.signIn, err = template.ParseFS(content, "text/signin.tmpl", "text/layout.tmpl"); err != nil {
		return nil, err
	}

	// Load single-file templates
	if t.typing, err = template.ParseFS(content, "text/typing.tmpl"); err != nil {
		return nil, err
	}
	if t.status, err = template.ParseFS(content, "text/status.tmpl"); err != nil {
		return nil, err
	}
	if t.deviceCode, err = template.ParseFS(content, "text/devicecode.tmpl"); err != nil {
		return nil, err
	}

	return t, nil
}

// MessageData holds data for a bot message
type MessageData struct {
	Time        string
	Sender      string
	Text        string
	Attachments []string
	Actions     []string
}

// RenderMessage renders a bot message
func (t *Templates) RenderMessage(w io.Writer, data MessageData) error {
	return render(w, t.message, "message.tmpl", data)
}

// SignInData holds data for the interactive sign-in fallback
type SignInData struct {
	Time   string
	Sender string
	Text   string
	Link   string
}

// RenderSignIn renders a sign-in card the silent exchange could not resolve
func (t *Templates) RenderSignIn(w io.Writer, data SignInData) error {
	return render(w, t.signIn, "signin.tmpl", data)
}

// TypingData holds data for a typing indicator
type TypingData struct {
	Sender string
}

// RenderTyping renders a typing indicator
func (t *Templates) RenderTyping(w io.Writer, data TypingData) error {
	return render(w, t.typing, "typing.tmpl", data)
}

// StatusData holds data for a connection status line
type StatusData struct {
	Status string
	Detail string
}

// RenderStatus renders a connection status line
func (t *Templates) RenderStatus(w io.Writer, data StatusData) error {
	return render(w, t.status, "status.tmpl", data)
}

// DeviceCodeData holds data for the device code sign-in prompt
type DeviceCodeData struct {
	BotName string
	Message string
}

// RenderDeviceCode renders the device code sign-in instructions
func (t *Templates) RenderDeviceCode(w io.Writer, data DeviceCodeData) error {
	return render(w, t.deviceCode, "devicecode.tmpl", data)
}

// render executes into a buffer first so a failure never leaves a partial entry
func render(w io.Writer, tmpl *template.Template, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return &TemplateError{Cause: err, Message: "rendering " + name}
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return &TemplateError{Cause: err, Message: "writing " + name}
	}
	return nil
}
