// Package router dispatches decoded socket frames to the stores. It does no
// I/O itself; slow side effects are handed to the task runner.
package router

import (
	"context"
	"log"

	"cultivationworld.ai/internal/protocol"
	"cultivationworld.ai/internal/store/ui"
)

const (
	DefaultLLMConfigError = "LLM 连接失败，请配置"
	DefaultReinitialized  = "LLM 配置成功，游戏已重新初始化"
)

type World interface {
	HandleTick(protocol.TickMsg)
	Initialize(ctx context.Context)
}

type UI interface {
	HasSelection() bool
	RefreshDetail(ctx context.Context) error
	OpenSystemMenu(tab ui.MenuTab, closable bool)
	ToastError(msg string)
	ToastWarning(msg string)
	ToastSuccess(msg string)
	ToastInfo(msg string)
}

type Locale interface {
	Current() string
	Switch(lang string) error
}

type Spawner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type Deps struct {
	World  World
	UI     UI
	Locale Locale
	Tasks  Spawner
	Log    *log.Logger
}

func (d Deps) logger() *log.Logger {
	if d.Log == nil {
		return log.Default()
	}
	return d.Log
}

// Route handles one inbound frame. Unknown types and undecodable payloads
// are dropped.
func Route(msg protocol.Message, d Deps) {
	switch msg.Type {
	case protocol.TypeTick:
		var t protocol.TickMsg
		if !decode(msg, &t, d) {
			return
		}
		handleTick(t, d)
	case protocol.TypeToast:
		var t protocol.ToastMsg
		if !decode(msg, &t, d) {
			return
		}
		handleToast(t, d)
	case protocol.TypeLLMConfigRequired:
		var m protocol.LLMConfigRequiredMsg
		if !decode(msg, &m, d) {
			return
		}
		handleLLMConfigRequired(m, d)
	case protocol.TypeGameReinitialized:
		var m protocol.GameReinitializedMsg
		if !decode(msg, &m, d) {
			return
		}
		handleGameReinitialized(m, d)
	}
}

func decode(msg protocol.Message, v any, d Deps) bool {
	if err := msg.Decode(v); err != nil {
		d.logger().Printf("drop %s frame: %v", msg.Type, err)
		return false
	}
	return true
}

func handleTick(t protocol.TickMsg, d Deps) {
	d.World.HandleTick(t)
	if d.UI.HasSelection() {
		d.Tasks.Go("refresh detail", d.UI.RefreshDetail)
	}
}

func handleToast(t protocol.ToastMsg, d Deps) {
	switch t.Level {
	case protocol.LevelError:
		d.UI.ToastError(t.Message)
	case protocol.LevelWarning:
		d.UI.ToastWarning(t.Message)
	case protocol.LevelSuccess:
		d.UI.ToastSuccess(t.Message)
	default:
		d.UI.ToastInfo(t.Message)
	}

	if t.Language == "" || d.Locale == nil {
		return
	}
	if d.Locale.Current() == t.Language {
		return
	}
	if err := d.Locale.Switch(t.Language); err != nil {
		d.logger().Printf("switch language: %v", err)
		return
	}
	d.logger().Printf("language switched to %s", t.Language)
}

func handleLLMConfigRequired(m protocol.LLMConfigRequiredMsg, d Deps) {
	msg := m.Error
	if msg == "" {
		msg = DefaultLLMConfigError
	}
	d.logger().Printf("WARN llm config required: %s", msg)
	d.UI.OpenSystemMenu(ui.TabLLM, false)
	d.UI.ToastError(msg)
}

func handleGameReinitialized(m protocol.GameReinitializedMsg, d Deps) {
	d.logger().Printf("game reinitialized: %s", m.Message)
	d.Tasks.Go("reinitialize world", func(ctx context.Context) error {
		d.World.Initialize(ctx)
		return nil
	})
	msg := m.Message
	if msg == "" {
		msg = DefaultReinitialized
	}
	d.UI.ToastSuccess(msg)
}
