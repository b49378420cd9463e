package main

import (
	"context"
	"iter"
	"time"

	"github.com/rhuss/agentserver/pkg/agent"
	"github.com/rhuss/agentserver/pkg/api"
)

// streamPause separates the two demo stream events.
const streamPause = 500 * time.Millisecond

// registerDemoAgent registers the hello-world agent that ships with the
// binary so it is runnable without user code. name prefixes the span names.
func registerDemoAgent(reg *agent.Registry, name string) error {
	if err := reg.RegisterInvoke(name, agent.InvokeFunc(helloInvoke)); err != nil {
		return err
	}
	return reg.RegisterStream(name, agent.StreamFunc(helloStream))
}

func helloInvoke(context.Context, api.Request) (any, error) {
	return api.ResponsesAgentResponse{
		ID:     "id",
		Output: []api.OutputItem{api.NewTextOutputItem("id", "Hello, world!")},
	}, nil
}

func helloStream(ctx context.Context, _ api.Request) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if !yield(api.NewOutputItemDone(api.NewTextOutputItem("id", "Hello, world!")), nil) {
			return
		}

		select {
		case <-time.After(streamPause):
		case <-ctx.Done():
			yield(nil, ctx.Err())
			return
		}

		yield(api.NewOutputItemDone(api.NewTextOutputItem("id", "Hello again!")), nil)
	}
}
