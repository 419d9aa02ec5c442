package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jitsi-contrib/focus/pkg/bridge"
	"github.com/jitsi-contrib/focus/pkg/colibri"
	"github.com/jitsi-contrib/focus/pkg/conference"
	focusconfig "github.com/jitsi-contrib/focus/pkg/config"
	"github.com/jitsi-contrib/focus/pkg/profiling"
	"github.com/jitsi-contrib/focus/pkg/registry"
	"github.com/jitsi-contrib/focus/pkg/signaling"
	"github.com/jitsi-contrib/focus/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"mellium.im/xmpp"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/mux"
)

func main() {
	var (
		configFilePath = flag.String("config", "config.yaml", "configuration file path")
		cpuProfile     = flag.String("cpuProfile", "", "write CPU profile to `file`")
		memProfile     = flag.String("memProfile", "", "write memory profile to `file`")
		rooms          = flag.String("rooms", "", "comma-separated list of MUC room JIDs to join on startup")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})

	deferredFunctions := []func(){}
	if *cpuProfile != "" {
		deferredFunctions = append(deferredFunctions, profiling.InitCPUProfiling(cpuProfile))
	}
	if *memProfile != "" {
		deferredFunctions = append(deferredFunctions, profiling.InitMemoryProfiling(memProfile))
	}

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		for _, function := range deferredFunctions {
			function()
		}
		os.Exit(0)
	}()

	cfg, err := focusconfig.LoadConfig(*configFilePath)
	if err != nil {
		logrus.WithError(err).Fatal("could not load config")
		return
	}

	switch cfg.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	if tp, err := telemetry.SetupTelemetry(telemetry.Config{Package: "focus", ID: cfg.XMPP.FocusNickname}); err != nil {
		logrus.WithError(err).Warn("telemetry disabled: could not set up tracer provider")
	} else {
		defer tp.Shutdown(context.Background()) //nolint:errcheck
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logrus.WithError(err).Warn("metrics disabled: could not register OTel counters")
		metrics = nil
	}

	password := os.Getenv("FOCUS_PASSWORD")
	session, err := signaling.Dial(context.Background(), cfg.XMPP, password)
	if err != nil {
		logrus.WithError(err).Fatal("could not connect to XMPP server")
		return
	}

	app := newFocusApp(cfg, session, metrics)

	roomNames := splitRooms(*rooms)
	options := []mux.Option{app.jingleBus.HandlerOption()}
	for _, roomName := range roomNames {
		roomJID, err := jid.Parse(roomName)
		if err != nil {
			logrus.WithError(err).WithField("room", roomName).Error("invalid room JID, skipping")
			continue
		}
		room := signaling.NewRoomSession(session, roomJID)
		app.rooms[roomName] = room
		options = append(options, room.HandlerOption())
	}

	serveMux := mux.New("jabber:client", options...)
	go func() {
		if err := session.Serve(serveMux); err != nil {
			logrus.WithError(err).Fatal("XMPP session terminated")
		}
	}()

	for roomName, room := range app.rooms {
		if err := app.joinRoom(roomName, room); err != nil {
			logrus.WithError(err).WithField("room", roomName).Error("failed to join room")
		}
	}

	select {}
}

func splitRooms(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// focusApp wires together the per-process singletons: the XMPP session, the
// bridge selector, the Jingle dispatch bus, and the Focus Registry. One
// instance exists per running focus.
type focusApp struct {
	cfg       *focusconfig.Config
	session   *xmpp.Session
	selector  *bridge.Selector
	jingleBus *signaling.JingleBus
	registry  *registry.Registry

	rooms map[string]*signaling.RoomSession
}

func newFocusApp(cfg *focusconfig.Config, session *xmpp.Session, metrics *telemetry.Metrics) *focusApp {
	app := &focusApp{
		cfg:       cfg,
		session:   session,
		selector:  bridge.NewSelector(),
		jingleBus: signaling.NewJingleBus(session),
		rooms:     make(map[string]*signaling.RoomSession),
	}

	var m conference.Metrics
	if metrics != nil {
		m = metrics
	}

	app.registry = registry.New(registry.NewConferenceFactory(
		app.conferenceConfigFor,
		app.selector,
		app.bridgeClientFor,
		m,
		app,
	))

	return app
}

func (a *focusApp) conferenceConfigFor(roomName string) conference.Config {
	return a.cfg.Conference.ToConferenceConfig(roomName, false, "")
}

func (a *focusApp) bridgeClientFor(id bridge.ID) colibri.BridgeClient {
	return colibri.NewHTTPBridgeClient("https://"+string(id)+"/colibri", http.DefaultClient)
}

// ConferenceEnded implements conference.TeardownNotifier: drops the room
// from both the registry and this process's room-session table once its
// conference has torn down.
func (a *focusApp) ConferenceEnded(roomName string) {
	a.registry.ConferenceEnded(roomName)
	delete(a.rooms, roomName)
}

// joinRoom sends the MUC join presence for an already-registered room (its
// HandlerOption must already be installed on the session's mux, since
// mellium's multiplexer is assembled once at startup) and wires its
// occupant events into the lazily-created conference, handing a
// JingleAdapter to each new participant as they join.
func (a *focusApp) joinRoom(roomName string, room *signaling.RoomSession) error {
	if err := room.Join(a.cfg.XMPP.FocusNickname); err != nil {
		return err
	}

	_, engine := a.registry.GetOrCreate(roomName)

	go func() {
		for evt := range room.Events() {
			switch e := evt.(type) {
			case signaling.MemberLeft:
				a.jingleBus.Remove(e.EndpointID)
			case signaling.MemberKicked:
				a.jingleBus.Remove(e.EndpointID)
			}
			engine.HandleRoomEvent(evt, func(endpointID string) signaling.JingleAdapter {
				return a.jingleBus.AdapterFor(endpointID, room.MemberJID(endpointID))
			})
		}
	}()

	return nil
}
