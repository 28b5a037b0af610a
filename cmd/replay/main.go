package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"cultivationworld.ai/internal/i18n"
	"cultivationworld.ai/internal/notify"
	"cultivationworld.ai/internal/protocol"
	"cultivationworld.ai/internal/recording"
	"cultivationworld.ai/internal/router"
	"cultivationworld.ai/internal/store/avatar"
	"cultivationworld.ai/internal/store/event"
	"cultivationworld.ai/internal/store/mapstore"
	"cultivationworld.ai/internal/store/ui"
	"cultivationworld.ai/internal/store/world"
	"cultivationworld.ai/internal/tasks"
)

var errOffline = errors.New("replay: backend not available")

func main() {
	var (
		dir     = flag.String("dir", "./data/frames", "directory containing frames-*.jsonl.zst")
		session = flag.String("session", "", "only replay this recording session (optional)")
		verbose = flag.Bool("v", false, "log store and router output")
	)
	flag.Parse()

	files, err := recording.ListFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list recordings:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no recordings found in", *dir)
		os.Exit(1)
	}

	out := io.Discard
	if *verbose {
		out = os.Stderr
	}
	r := newReplayer(out)

	for _, path := range files {
		err := recording.ReadFile(path, func(e recording.Entry) error {
			if *session != "" && e.Session != *session {
				return nil
			}
			return r.apply(e)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	r.tasks.Wait()

	year, month := r.world.Time()
	fmt.Printf("replay ok: files=%d segments=%d snapshots=%d frames=%d ticks=%d skipped=%d\n",
		len(files), r.segments, r.snapshots, r.frames, r.ticks, r.skipped)
	fmt.Printf("world loaded=%v year=%d month=%d avatars=%d events=%d domains=%d\n",
		r.world.Loaded(), year, month, len(r.world.AvatarList()), len(r.world.Events()), len(r.world.ActiveDomains()))
}

type replayer struct {
	api   *replayAPI
	world *world.Store
	tasks *tasks.Runner
	deps  router.Deps

	segments, snapshots, frames, ticks, skipped int
}

func newReplayer(logOut io.Writer) *replayer {
	logger := func(prefix string) *log.Logger { return log.New(logOut, prefix, log.LstdFlags|log.Lmicroseconds) }

	a := &replayAPI{}
	maps := mapstore.NewStore(a, logger("[map] "))
	// Recordings carry no map; mark it loaded so re-initialization only
	// needs the recorded snapshot.
	maps.Apply(protocol.MapResponse{})
	events := event.NewStore(a, 0, logger("[events] "))
	w := world.New(a, maps, avatar.NewStore(a), events, logger("[world] "))

	locale, _ := i18n.New(nil)
	runner := tasks.NewRunner(context.Background(), logger("[task] "))
	return &replayer{
		api:   a,
		world: w,
		tasks: runner,
		deps: router.Deps{
			World:  w,
			UI:     ui.NewStore(a, notify.NewTerminal(logOut)),
			Locale: locale,
			Tasks:  runner,
			Log:    logger("[router] "),
		},
	}
}

func (r *replayer) apply(e recording.Entry) error {
	switch e.Kind {
	case recording.KindHeader:
		h, err := e.Header()
		if err != nil {
			return err
		}
		if h.Format > recording.FormatVersion {
			return fmt.Errorf("segment %s: format %d is newer than %d", h.Segment, h.Format, recording.FormatVersion)
		}
		r.segments++
	case recording.KindSnapshot:
		st, err := e.Snapshot()
		if err != nil {
			return err
		}
		r.snapshots++
		r.api.setState(st)
		r.world.ApplySnapshot(st)
	case recording.KindFrame:
		msg, err := e.Message()
		if err != nil {
			r.skipped++
			return nil
		}
		r.frames++
		if msg.Type == protocol.TypeTick {
			r.ticks++
		}
		router.Route(msg, r.deps)
		// Spawned work must land before the next frame to keep replays
		// deterministic.
		r.tasks.Wait()
	default:
		r.skipped++
	}
	return nil
}

// replayAPI answers state requests from the last recorded snapshot; every
// other endpoint is offline.
type replayAPI struct {
	mu    sync.Mutex
	state *protocol.InitialState
}

func (a *replayAPI) setState(st protocol.InitialState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = &st
}

func (a *replayAPI) FetchInitialState(context.Context) (protocol.InitialState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == nil {
		return protocol.InitialState{}, errOffline
	}
	return *a.state, nil
}

func (a *replayAPI) FetchMap(context.Context) (protocol.MapResponse, error) {
	return protocol.MapResponse{}, errOffline
}

func (a *replayAPI) FetchPhenomena(context.Context) ([]protocol.Phenomenon, error) {
	return nil, errOffline
}

func (a *replayAPI) SetPhenomenon(context.Context, int) error { return errOffline }

func (a *replayAPI) FetchRankings(context.Context) (protocol.Rankings, error) {
	return protocol.Rankings{}, errOffline
}

func (a *replayAPI) FetchEvents(context.Context, protocol.EventFilter, string, int) (protocol.EventsPage, error) {
	return protocol.EventsPage{}, errOffline
}

func (a *replayAPI) FetchDetail(context.Context, string, string) (protocol.Detail, error) {
	return protocol.Detail{}, errOffline
}
