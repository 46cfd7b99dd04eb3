package analytics

import (
	"context"

	"questboard/core"
)

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// Handler adapts the bridge to an event bus subscription.
func (b *BridgeHook) Handler() func(context.Context, core.Event) {
	return func(_ context.Context, e core.Event) { b.OnEvent(e) }
}
