package pipeline

import "context"

type Step interface {
    Execute(ctx context.Context, runContext *Context) error
    GetType() string
}
