package main

import (
	"context"
	"log"

	"cultivationworld.ai/internal/api"
	"cultivationworld.ai/internal/protocol"
	"cultivationworld.ai/internal/recording"
)

// recordingAPI records every state snapshot it fetches so a replay can seed
// the stores before applying frames.
type recordingAPI struct {
	*api.Client
	rec *recording.Recorder
	log *log.Logger
}

func (a recordingAPI) FetchInitialState(ctx context.Context) (protocol.InitialState, error) {
	st, err := a.Client.FetchInitialState(ctx)
	if err != nil {
		return st, err
	}
	if err := a.rec.RecordSnapshot(st); err != nil {
		a.log.Printf("WARN record snapshot: %v", err)
	}
	return st, nil
}
