package repo

import (
	"context"

	"github.com/foomo/linkserver/responses"
)

// Notifier is told about every published site map
type Notifier interface {
	Notify(ctx context.Context, event *responses.SiteMapUpdated) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, event *responses.SiteMapUpdated) error

func (f NotifierFunc) Notify(ctx context.Context, event *responses.SiteMapUpdated) error {
	return f(ctx, event)
}
