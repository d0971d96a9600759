//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/certdesk/certdesk/backend-go/internal/asset"
	"github.com/certdesk/certdesk/backend-go/internal/command"
	"github.com/certdesk/certdesk/backend-go/internal/document"
	"github.com/certdesk/certdesk/backend-go/internal/engine"
	"github.com/certdesk/certdesk/backend-go/internal/typeid"
)

var (
	mu         sync.Mutex
	dispatcher *command.Dispatcher
	listener   js.Value
	sessionID  = typeid.NewSessionID()
)

func main() {
	library := asset.NewLibrary("")
	ingestor := asset.NewIngestor(asset.DefaultLimits(), library)
	preset, _ := document.LookupPreset(document.PresetLetter)

	dispatcher = command.NewDispatcher(engine.New(engine.Options{
		Preset: preset,
		NewID:  typeid.NewElementID,
	}), ingestor, library, nil)

	certdeskEditor := js.Global().Get("Object").New()

	// send(messageJSON) returns a JSON array of replies. Results of
	// asset.ingest and document.export arrive later through onMessage.
	certdeskEditor.Set("send", js.FuncOf(send))
	certdeskEditor.Set("onMessage", js.FuncOf(onMessage))
	certdeskEditor.Set("welcome", js.FuncOf(welcome))
	certdeskEditor.Set("dispose", js.FuncOf(dispose))

	js.Global().Set("certdeskEditor", certdeskEditor)
	js.Global().Set("certdeskWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func send(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return encodeReplies([]command.Message{command.ErrorMessage(0, command.ErrBadPayload)})
	}

	var msg command.Message
	if err := json.Unmarshal([]byte(args[0].String()), &msg); err != nil {
		return encodeReplies([]command.Message{command.ErrorMessage(0, command.ErrBadPayload)})
	}
	return encodeReplies(handle(msg))
}

func handle(msg command.Message) []command.Message {
	mu.Lock()
	reply := dispatcher.Handle(msg)
	mu.Unlock()

	if reply.Job != nil {
		go func(job command.Job) {
			result := job(context.Background())
			deliver(handle(result))
		}(reply.Job)
	}
	return reply.Messages
}

func deliver(msgs []command.Message) {
	mu.Lock()
	fn := listener
	mu.Unlock()
	if fn.Type() != js.TypeFunction {
		return
	}
	fn.Invoke(encodeReplies(msgs))
}

func onMessage(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if len(args) < 1 {
		listener = js.Undefined()
		return nil
	}
	listener = args[0]
	return nil
}

func welcome(this js.Value, args []js.Value) interface{} {
	return encodeReplies([]command.Message{command.Welcome(sessionID)})
}

func dispose(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	dispatcher.Editor().Dispose()
	return nil
}

func encodeReplies(msgs []command.Message) interface{} {
	data, err := json.Marshal(msgs)
	if err != nil {
		return js.ValueOf(`[]`)
	}
	return js.ValueOf(string(data))
}
