package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matt0x6f/cascade-core/internal/commands"
	"github.com/matt0x6f/cascade-core/internal/config"
	"github.com/matt0x6f/cascade-core/internal/constants"
	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/ingest"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/notify"
	"github.com/matt0x6f/cascade-core/internal/security"
	"github.com/matt0x6f/cascade-core/internal/session"
	"github.com/matt0x6f/cascade-core/internal/storage"
	"github.com/matt0x6f/cascade-core/internal/update"
)

// CategoryClient groups the commands the console adds on top of the builtins
const CategoryClient = "Client"

const shutdownTimeout = 5 * time.Second

// App wires the session core to storage, the keychain, notifications and the
// updater, and drives it from console input.
type App struct {
	cfg       *config.Config
	storage   *storage.Storage
	eventBus  *events.EventBus
	keychain  *security.Keychain
	session   *session.Session
	registry  *commands.Registry
	updater   *update.Controller
	notifier  *notify.Notifier
	recorder  *storage.Recorder
	ingestors map[string]*ingest.Ingestor // by session server ID

	// focused server and channel; the focused channel is the active one
	focusServer  string
	focusChannel string

	// mu serializes all access to the session
	mu sync.Mutex

	out   io.Writer
	outMu sync.Mutex

	startupCtx    context.Context
	startupCancel context.CancelFunc
	startupWg     sync.WaitGroup
	shutdownOnce  sync.Once

	// bgMu orders startupWg.Add against shutdown's Wait
	bgMu    sync.Mutex
	closing bool
}

// NewApp creates the application from its configuration. Output for the
// user (messages, command results, outbound protocol lines) goes to out.
func NewApp(cfg *config.Config, out io.Writer) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	stor, err := storage.NewStorage(cfg.DatabasePath(), cfg.MessageBuffer, cfg.FlushInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eventBus := events.NewEventBus()

	app := &App{
		cfg:       cfg,
		storage:   stor,
		eventBus:  eventBus,
		keychain:  security.NewKeychain(security.DefaultService),
		session:   session.New(eventBus),
		registry:  commands.NewRegistry(),
		notifier:  notify.New("Cascade Chat"),
		recorder:  storage.NewRecorder(stor),
		ingestors: make(map[string]*ingest.Ingestor),
		out:       out,
	}
	app.startupCtx, app.startupCancel = context.WithCancel(context.Background())
	app.notifier.SetEnabled(cfg.Notifications.Enabled)

	app.updater = update.NewController(update.Options{
		CurrentVersion: cfg.AppVersion,
		Source:         update.ManifestSource{Path: cfg.ManifestFile()},
		Downloader:     update.NewBrowserDownloader(),
		Store:          stor.Settings(),
		Bus:            eventBus,
	})

	if err := commands.RegisterBuiltins(app.registry, commands.Env{Session: app.session, Sender: app}); err != nil {
		stor.Close()
		return nil, err
	}
	if err := app.registerClientCommands(); err != nil {
		stor.Close()
		return nil, err
	}

	// Scrollback
	eventBus.Subscribe(events.EventMessageAdded, app.recorder)
	// Desktop notifications
	eventBus.Subscribe(events.EventMention, app.notifier)
	eventBus.Subscribe(events.EventUpdateAvailable, app.notifier)
	// Console output
	eventBus.Subscribe(events.EventMessageAdded, app)
	eventBus.Subscribe(events.EventServerConnection, app)
	eventBus.Subscribe(events.EventUpdateAvailable, app)
	eventBus.Subscribe(events.EventUpdateUpToDate, app)
	eventBus.Subscribe(events.EventUpdateDismissed, app)
	eventBus.Subscribe(events.EventUpdateError, app)

	return app, nil
}

// startup reconnects saved servers and starts background update checks
func (a *App) startup() {
	logger.Log.Info().Str("version", a.cfg.AppVersion).Msg("App startup")

	a.goBackground("auto-connect", a.autoConnect)

	if !a.cfg.Update.Enabled {
		logger.Log.Info().Msg("Update checks disabled")
		return
	}
	a.goBackground("update scheduler", func() {
		update.NewScheduler(a.updater, constants.UpdateCheckDelay, a.cfg.Update.CheckInterval).Run(a.startupCtx)
	})
}

// goBackground runs fn on a goroutine that shutdown waits for. It returns
// false without running fn once shutdown has begun.
func (a *App) goBackground(name string, fn func()) bool {
	a.bgMu.Lock()
	defer a.bgMu.Unlock()
	if a.closing {
		return false
	}
	a.startupWg.Add(1)
	go func() {
		defer a.startupWg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Error().Interface("panic", r).Str("task", name).Msg("PANIC in background task")
			}
		}()
		fn()
	}()
	return true
}

func (a *App) autoConnect() {
	servers, err := a.storage.GetServers()
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to load servers for auto-connect")
		return
	}

	for _, rec := range servers {
		if !rec.AutoConnect {
			continue
		}
		select {
		case <-a.startupCtx.Done():
			logger.Log.Debug().Msg("Startup cancelled, skipping auto-connect")
			return
		default:
		}

		a.mu.Lock()
		_, err := a.connectLocked(serverConfig(rec))
		a.mu.Unlock()
		if err != nil {
			logger.Log.Error().Err(err).Str("server", rec.Name).Msg("Failed to auto-connect")
			continue
		}
		logger.Log.Info().Str("server", rec.Name).Msg("Auto-connected")
	}
}

// shutdown stops background work and flushes storage. Safe to call twice.
func (a *App) shutdown() {
	a.shutdownOnce.Do(func() {
		logger.Log.Info().Msg("App shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.startupCancel()

		a.bgMu.Lock()
		a.closing = true
		a.bgMu.Unlock()

		startupDone := make(chan struct{})
		go func() {
			a.startupWg.Wait()
			close(startupDone)
		}()
		select {
		case <-startupDone:
		case <-shutdownCtx.Done():
			logger.Log.Warn().Msg("Timeout waiting for startup goroutines, continuing shutdown")
		}

		a.mu.Lock()
		for _, srv := range a.session.Servers() {
			if srv.IsConnected {
				a.sendLocked(srv, "QUIT", "Leaving")
			}
		}
		a.mu.Unlock()

		storageDone := make(chan struct{})
		go func() {
			if err := a.storage.Close(); err != nil {
				logger.Log.Warn().Err(err).Msg("Failed to close storage")
			}
			close(storageDone)
		}()
		select {
		case <-storageDone:
		case <-shutdownCtx.Done():
			logger.Log.Warn().Msg("Timeout closing storage, continuing shutdown")
		}

		logger.Log.Info().Msg("App shutdown complete")
	})
}

// Send implements commands.Sender by writing the wire line to the console.
// Callers hold a.mu.
func (a *App) Send(serverID string, msg ircmsg.Message) error {
	srv := a.session.Server(serverID)
	if srv == nil {
		return session.ErrServerNotFound
	}
	shown := msg
	shown.Params = commands.RedactParams(msg.Command, msg.Params)
	line, err := shown.Line()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Command, err)
	}
	a.printf(">> [%s] %s", srv.Name, strings.TrimRight(line, "\r\n"))
	return nil
}

func (a *App) sendLocked(srv *session.Server, command string, params ...string) {
	if err := a.Send(srv.ID, ircmsg.MakeMessage(nil, "", command, params...)); err != nil {
		logger.Log.Warn().Err(err).Str("server", srv.Name).Str("command", command).Msg("Failed to send")
	}
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format+"\n", args...)
}

// KeepInHistory reports whether an input line may be saved to the history
// file. Lines that carry passwords are left out.
func (a *App) KeepInHistory(line string) bool {
	inv, ok := commands.Parse(line)
	if !ok {
		return true
	}
	name := inv.Name
	if cmd := a.registry.Get(name); cmd != nil {
		name = cmd.Name
	}
	switch name {
	case "password":
		return false
	case "quote":
		return len(inv.Args) == 0 || !commands.IsSecretCommand(inv.Args[0])
	case "msg", "query":
		// NickServ IDENTIFY and REGISTER take the account password
		return len(inv.Args) == 0 || !strings.EqualFold(inv.Args[0], "NickServ")
	}
	return true
}

// HandleInput processes one console line. Lines starting with ":" or "@" are
// fed to the focused server as if received from it, slash lines are commands
// and anything else is a message to the focused channel.
func (a *App) HandleInput(line string) error {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	srv, ch := a.focusedLocked()

	switch {
	case strings.HasPrefix(line, ":") || strings.HasPrefix(line, "@"):
		if srv == nil {
			return fmt.Errorf("no server focused")
		}
		return a.ingestors[srv.ID].HandleLine(line)

	case commands.IsCommand(line):
		resp, err := a.registry.Execute(line, ch, srv)
		if err != nil {
			return err
		}
		a.report(resp)
		if channelID, ok := resp.Data.(string); ok && resp.Success {
			if target := a.session.Channel(channelID); target != nil {
				a.focusLocked(target.ServerID, target.ID)
			}
		}
		return nil

	default:
		if ch == nil {
			a.printf("-- no channel focused, /join a channel or /focus one")
			return nil
		}
		resp, err := a.registry.Dispatch("msg", []string{ch.Name, commands.Unescape(line)}, ch, srv)
		if !resp.Success {
			a.report(resp)
		}
		return err
	}
}

func (a *App) report(resp commands.Response) {
	switch {
	case resp.Err != nil:
		a.printf("!! %v", resp.Err)
	case !resp.Success:
		a.printf("!! %s", resp.Message)
	case resp.Message != "":
		a.printf("-- %s", resp.Message)
	}
}

// focusedLocked returns the focused server and channel. A focused channel
// that has since been removed falls back to the server's first channel.
func (a *App) focusedLocked() (*session.Server, *session.Channel) {
	srv := a.session.Server(a.focusServer)
	if srv == nil {
		return nil, nil
	}
	if ch := a.session.Channel(a.focusChannel); ch != nil && ch.ServerID == srv.ID {
		return srv, ch
	}
	if channels := srv.Channels(); len(channels) > 0 {
		a.focusLocked(srv.ID, channels[0].ID)
		return srv, channels[0]
	}
	a.focusChannel = ""
	return srv, nil
}

func (a *App) focusLocked(serverID, channelID string) {
	a.focusServer = serverID
	a.focusChannel = channelID
	if channelID == "" {
		return
	}
	if err := a.session.MarkRead(channelID); err != nil {
		logger.Log.Debug().Err(err).Str("channel", channelID).Msg("Failed to mark focused channel read")
	}
}

// isActive reports whether channelID has focus; ingestors call it under a.mu
func (a *App) isActive(channelID string) bool {
	return channelID != "" && channelID == a.focusChannel
}

// connectLocked adds a server to the session, persists it, restores its
// scrollback and sends the registration burst.
func (a *App) connectLocked(cfg session.ServerConfig) (*session.Server, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Host
	}
	if a.session.ServerByName(name) != nil {
		return nil, fmt.Errorf("already connected to %s", name)
	}
	if cfg.Password == "" {
		password, err := a.keychain.GetPassword(name)
		if err != nil {
			logger.Log.Warn().Err(err).Str("server", name).Msg("Failed to read server password")
		}
		cfg.Password = password
	}

	srv, err := a.session.Connect(cfg)
	if err != nil {
		return nil, err
	}

	record := &storage.ServerRecord{
		Name:        srv.Name,
		Host:        srv.Host,
		Port:        srv.Port,
		Nickname:    srv.Nickname,
		AutoConnect: cfg.AutoConnect,
		Channels:    cfg.Channels,
	}
	if err := a.storage.SaveServer(record); err != nil {
		logger.Log.Warn().Err(err).Str("server", srv.Name).Msg("Failed to save server")
	}

	a.ingestors[srv.ID] = ingest.New(a.session, srv.ID, a.isActive)

	for _, ch := range srv.Channels() {
		n, err := a.recorder.Replay(a.session, ch, srv.Name, a.cfg.ScrollbackLimit)
		if err != nil {
			logger.Log.Warn().Err(err).Str("channel", ch.Name).Msg("Failed to restore scrollback")
			continue
		}
		logger.Log.Debug().Str("channel", ch.Name).Int("messages", n).Msg("Restored scrollback")
	}

	if cfg.Password != "" {
		a.sendLocked(srv, "PASS", cfg.Password)
	}
	a.sendLocked(srv, "NICK", srv.Nickname)
	a.sendLocked(srv, "USER", srv.Nickname, "0", "*", srv.Nickname)

	if a.session.Server(a.focusServer) == nil {
		channelID := ""
		if channels := srv.Channels(); len(channels) > 0 {
			channelID = channels[0].ID
		}
		a.focusLocked(srv.ID, channelID)
	}
	return srv, nil
}

// disconnectLocked quits a server and drops it from the session
func (a *App) disconnectLocked(srv *session.Server, reason string) error {
	if srv.IsConnected {
		a.sendLocked(srv, "QUIT", reason)
	}
	delete(a.ingestors, srv.ID)
	if err := a.session.RemoveServer(srv.ID); err != nil {
		return err
	}
	if a.focusServer == srv.ID {
		a.focusServer, a.focusChannel = "", ""
		if servers := a.session.Servers(); len(servers) > 0 {
			a.focusLocked(servers[0].ID, "")
		}
	}
	return nil
}

func serverConfig(rec storage.ServerRecord) session.ServerConfig {
	return session.ServerConfig{
		Name:        rec.Name,
		Host:        rec.Host,
		Port:        rec.Port,
		Nickname:    rec.Nickname,
		Channels:    rec.Channels,
		AutoConnect: rec.AutoConnect,
	}
}

// splitHostPort accepts "host" or "host:port"
func splitHostPort(address string) (string, int, error) {
	if !strings.Contains(address, ":") {
		return address, constants.DefaultPort, nil
	}
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// OnEvent implements events.Subscriber and renders session activity
func (a *App) OnEvent(event events.Event) {
	switch event.Type {
	case events.EventMessageAdded:
		msg, ok := event.Data["message"].(session.Message)
		if !ok {
			return
		}
		server, _ := event.Data["server"].(string)
		channel, _ := event.Data["channel"].(string)
		a.printf("[%s/%s] %s", server, channel, formatMessage(msg))

	case events.EventServerConnection:
		connected, _ := event.Data["connected"].(bool)
		serverID, _ := event.Data["serverId"].(string)
		if connected {
			a.autoJoin(serverID)
		}

	case events.EventUpdateAvailable:
		available, _ := event.Data["version"].(string)
		a.printf("-- Update available: %s (/update download or /update dismiss)", available)
	case events.EventUpdateUpToDate:
		a.printf("-- You are running the latest version")
	case events.EventUpdateDismissed:
		dismissed, _ := event.Data["version"].(string)
		a.printf("-- Update %s dismissed", dismissed)
	case events.EventUpdateError:
		msg, _ := event.Data["error"].(string)
		a.printf("!! Update check failed: %s", msg)
	}
}

// autoJoin joins every public channel the server was configured with
func (a *App) autoJoin(serverID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	srv := a.session.Server(serverID)
	if srv == nil || !srv.IsConnected {
		return
	}
	for _, ch := range srv.Channels() {
		if ch.IsPrivate {
			continue
		}
		a.sendLocked(srv, "JOIN", ch.Name)
	}
}

func formatMessage(msg session.Message) string {
	switch {
	case msg.IsAction:
		return fmt.Sprintf("* %s %s", msg.Author, msg.Content)
	case msg.Kind == session.KindMessage:
		return fmt.Sprintf("<%s> %s", msg.Author, msg.Content)
	default:
		return "-- " + msg.Content
	}
}

// registerClientCommands adds the commands that manage the client itself
func (a *App) registerClientCommands() error {
	cmds := []*commands.Command{
		{Name: "connect", Aliases: []string{"server"}, Category: CategoryClient,
			Description: "Connect to a saved or new server",
			Usage:       "/connect name [host[:port] nick [#channel...]]",
			Handler:     commands.HandlerFunc(a.connectCommand)},
		{Name: "disconnect", Aliases: []string{"quit"}, Category: CategoryClient,
			Description: "Disconnect from the current server", Usage: "/disconnect [reason]",
			Handler: commands.HandlerFunc(a.disconnectCommand)},
		{Name: "forget", Category: CategoryClient,
			Description: "Delete a saved server and its password", Usage: "/forget name",
			Handler: commands.HandlerFunc(a.forgetCommand)},
		{Name: "servers", Category: CategoryClient,
			Description: "List saved and connected servers", Usage: "/servers",
			Handler: commands.HandlerFunc(a.serversCommand)},
		{Name: "focus", Aliases: []string{"window", "w"}, Category: CategoryClient,
			Description: "Switch the focused server or channel", Usage: "/focus [server] [#channel]",
			Handler: commands.HandlerFunc(a.focusCommand)},
		{Name: "password", Category: CategoryClient,
			Description: "Store or clear a server password", Usage: "/password name [password]",
			Handler: commands.HandlerFunc(a.passwordCommand)},
		{Name: "autojoin", Category: CategoryClient,
			Description: "Toggle auto-join for a channel", Usage: "/autojoin #channel on|off",
			Handler: commands.HandlerFunc(a.autojoinCommand)},
		{Name: "notify", Category: CategoryClient,
			Description: "Turn desktop notifications on or off", Usage: "/notify on|off",
			Handler: commands.HandlerFunc(a.notifyCommand)},
		{Name: "update", Category: CategoryClient,
			Description: "Check for, download or dismiss updates",
			Usage:       "/update [status|check|force|download|dismiss]",
			Handler:     commands.HandlerFunc(a.updateCommand)},
	}
	for _, cmd := range cmds {
		if err := a.registry.Register(cmd); err != nil {
			return fmt.Errorf("failed to register client commands: %w", err)
		}
	}
	return nil
}

func (a *App) connectCommand(args []string, _ *session.Channel, _ *session.Server) (commands.Response, error) {
	if len(args) == 0 {
		return commands.Fail("usage: /connect name [host[:port] nick [#channel...]]"), nil
	}

	var cfg session.ServerConfig
	if len(args) == 1 {
		rec, err := a.storage.GetServer(args[0])
		if errors.Is(err, storage.ErrServerNotFound) {
			return commands.Fail("no saved server named %s", args[0]), nil
		}
		if err != nil {
			return commands.Response{}, err
		}
		cfg = serverConfig(*rec)
	} else {
		if len(args) < 3 {
			return commands.Fail("usage: /connect name host[:port] nick [#channel...]"), nil
		}
		host, port, err := splitHostPort(args[1])
		if err != nil {
			return commands.Fail("invalid address %s: %v", args[1], err), nil
		}
		cfg = session.ServerConfig{
			Name:        args[0],
			Host:        host,
			Port:        port,
			Nickname:    args[2],
			Channels:    args[3:],
			AutoConnect: true,
		}
	}

	srv, err := a.connectLocked(cfg)
	if err != nil {
		return commands.Fail("%v", err), nil
	}
	return commands.Response{Success: true, Message: "connecting to " + srv.Name}, nil
}

func (a *App) disconnectCommand(args []string, _ *session.Channel, srv *session.Server) (commands.Response, error) {
	if srv == nil {
		return commands.Fail("not connected to a server"), nil
	}
	reason := strings.Join(args, " ")
	if reason == "" {
		reason = "Leaving"
	}
	name := srv.Name
	if err := a.disconnectLocked(srv, reason); err != nil {
		return commands.Response{}, err
	}
	return commands.OK("disconnected from " + name), nil
}

func (a *App) forgetCommand(args []string, _ *session.Channel, _ *session.Server) (commands.Response, error) {
	if len(args) != 1 {
		return commands.Fail("usage: /forget name"), nil
	}
	if err := a.storage.DeleteServer(args[0]); err != nil {
		if errors.Is(err, storage.ErrServerNotFound) {
			return commands.Fail("no saved server named %s", args[0]), nil
		}
		return commands.Response{}, err
	}
	if err := a.keychain.DeletePassword(args[0]); err != nil {
		logger.Log.Warn().Err(err).Str("server", args[0]).Msg("Failed to delete server password")
	}
	return commands.OK("forgot " + args[0]), nil
}

func (a *App) serversCommand(_ []string, _ *session.Channel, _ *session.Server) (commands.Response, error) {
	saved, err := a.storage.GetServers()
	if err != nil {
		return commands.Response{}, err
	}

	var sb strings.Builder
	for _, rec := range saved {
		state := "offline"
		if srv := a.session.ServerByName(rec.Name); srv != nil {
			state = "open"
			if srv.IsConnected {
				state = "connected"
			}
		}
		fmt.Fprintf(&sb, "%s %s:%d as %s [%s]", rec.Name, rec.Host, rec.Port, rec.Nickname, state)
		if rec.AutoConnect {
			sb.WriteString(" auto")
		}
		if len(rec.Channels) > 0 {
			sb.WriteString(" " + strings.Join(rec.Channels, ","))
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return commands.OK("no saved servers"), nil
	}
	return commands.Response{Success: true, Message: strings.TrimRight(sb.String(), "\n"), Data: saved}, nil
}

func (a *App) focusCommand(args []string, ch *session.Channel, srv *session.Server) (commands.Response, error) {
	if len(args) == 0 {
		if srv == nil {
			return commands.OK("nothing focused"), nil
		}
		if ch == nil {
			return commands.OK("focused on " + srv.Name), nil
		}
		return commands.OK(fmt.Sprintf("focused on %s %s", srv.Name, ch.Name)), nil
	}

	target := srv
	if other := a.session.ServerByName(args[0]); other != nil {
		target = other
		args = args[1:]
	}
	if target == nil {
		return commands.Fail("no server named %s", args[0]), nil
	}

	if len(args) == 0 {
		channelID := ""
		if channels := target.Channels(); len(channels) > 0 {
			channelID = channels[0].ID
		}
		a.focusLocked(target.ID, channelID)
		return commands.OK("focused on " + target.Name), nil
	}

	dest := target.Channel(args[0])
	if dest == nil {
		return commands.Fail("no channel %s on %s", args[0], target.Name), nil
	}
	a.focusLocked(target.ID, dest.ID)
	return commands.OK(fmt.Sprintf("focused on %s %s", target.Name, dest.Name)), nil
}

func (a *App) passwordCommand(args []string, _ *session.Channel, _ *session.Server) (commands.Response, error) {
	if len(args) == 0 {
		return commands.Fail("usage: /password name [password]"), nil
	}
	password := strings.Join(args[1:], " ")
	if err := a.keychain.StorePassword(args[0], password); err != nil {
		return commands.Response{}, err
	}
	if password == "" {
		return commands.OK("password cleared for " + args[0]), nil
	}
	return commands.OK("password stored for " + args[0]), nil
}

func (a *App) autojoinCommand(args []string, ch *session.Channel, srv *session.Server) (commands.Response, error) {
	if srv == nil {
		return commands.Fail("not connected to a server"), nil
	}
	if len(args) != 2 {
		return commands.Fail("usage: /autojoin #channel on|off"), nil
	}
	enabled, err := parseSwitch(args[1])
	if err != nil {
		return commands.Fail("%v", err), nil
	}

	rec, err := a.storage.GetServer(srv.Name)
	if err != nil {
		return commands.Response{}, err
	}
	if err := a.storage.SetChannelAutoJoin(rec.ID, args[0], enabled); err != nil {
		return commands.Response{}, err
	}
	return commands.OK(fmt.Sprintf("auto-join %s for %s", args[1], args[0])), nil
}

func (a *App) notifyCommand(args []string, _ *session.Channel, _ *session.Server) (commands.Response, error) {
	if len(args) == 0 {
		if a.notifier.Enabled() {
			return commands.OK("notifications are on"), nil
		}
		return commands.OK("notifications are off"), nil
	}
	enabled, err := parseSwitch(args[0])
	if err != nil {
		return commands.Fail("%v", err), nil
	}
	a.notifier.SetEnabled(enabled)
	return commands.OK("notifications " + args[0]), nil
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", value)
}

func (a *App) updateCommand(args []string, _ *session.Channel, _ *session.Server) (commands.Response, error) {
	action := "status"
	if len(args) > 0 {
		action = strings.ToLower(args[0])
	}

	switch action {
	case "status":
		snap := a.updater.Snapshot()
		text := fmt.Sprintf("version %s, update state %s", a.updater.CurrentVersion(), snap.State)
		if snap.UpdateInfo != nil {
			text += ", available " + snap.UpdateInfo.Version
		}
		if snap.LastChecked != "" {
			text += ", last checked " + snap.LastChecked
		}
		if snap.Error != "" {
			text += ", error: " + snap.Error
		}
		return commands.Response{Success: true, Message: text, Data: snap}, nil

	case "check", "force":
		// Checks run off the input path; the result arrives as an update.* event
		force := action == "force"
		started := a.goBackground("update check", func() {
			var err error
			if force {
				_, err = a.updater.ForceCheck(a.startupCtx)
			} else {
				_, err = a.updater.CheckForUpdates(a.startupCtx)
			}
			if errors.Is(err, update.ErrInvalidTransition) {
				a.printf("!! cannot check for updates while %s", a.updater.State())
			}
		})
		if !started {
			return commands.Fail("shutting down"), nil
		}
		return commands.OK("checking for updates"), nil

	case "download":
		if err := a.updater.DownloadUpdate(); err != nil {
			return commands.Fail("%v", err), nil
		}
		return commands.OK("download opened in your browser"), nil

	case "dismiss":
		if err := a.updater.DismissUpdate(); err != nil {
			return commands.Fail("%v", err), nil
		}
		return commands.OK(""), nil
	}
	return commands.Fail("usage: /update [status|check|force|download|dismiss]"), nil
}
