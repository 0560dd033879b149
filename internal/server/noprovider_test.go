package server

import (
	"context"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/ailink/driver"
	"github.com/clauselens/clauselens/internal/core"
)

type noProvider struct{}

func (noProvider) DispatchRequest(context.Context, *driver.Request) ailink.DispatchResult {
	return ailink.DispatchResult{
		Payload:       ailink.PayloadFromText(core.NoResponseText),
		ProviderLabel: ailink.NoProviderLabel,
	}
}
