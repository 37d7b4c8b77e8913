package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"astroremote/backend/auth"
	"astroremote/backend/ble"
	"astroremote/backend/cli"
	"astroremote/backend/preference"
	"astroremote/backend/remote"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	application = kingpin.New("astroremote", "Bluetooth bridge between a companion remote and a camera")

	configDir     = application.Flag("config.dir", "Configuration files dir").Default("/etc/astroremote").Envar("ASTRO_CONFIG_DIR").String()
	jwtSecretFile = application.Flag("jwt.secret", "jwt secret file").Default("").Envar("JWT_SECRET").String()
	logLevel      = application.Flag("log.level", "set log level: trace, debug, info, warn, error").Default("info").Envar("ASTRO_LOG_LEVEL").Enum("trace", "debug", "info", "warn", "error")
	logFormat     = application.Flag("log.format", "set log format: text, json").Default("text").Envar("ASTRO_LOG_FORMAT").Enum("text", "json")
	ctlSocket     = application.Flag("ctl.socket", "path of the local control socket").Default("/run/astroremote.sock").Envar("ASTRO_CTL_SOCKET").String()
	bleName       = application.Flag("ble.name", "suffix of the advertised name").Default("").Envar("ASTRO_BLE_NAME").String()

	serveCmd     = application.Command("serve", "Run the bridge").Default()
	listenHost   = serveCmd.Flag("listen.host", "host for the status api").Default("0.0.0.0").Envar("ASTRO_LISTEN_HOST").String()
	listenPort   = serveCmd.Flag("listen.port", "port for the status api").Default("8042").Envar("ASTRO_LISTEN_PORT").String()
	metricsPath  = serveCmd.Flag("metrics.path", "URL path for exposing collected metrics").Default("/metrics").Envar("ASTRO_METRICS_PATH").String()
	tickInterval = serveCmd.Flag("tick", "control loop period").Default("50ms").Envar("ASTRO_TICK").Duration()

	tokenCmd     = application.Command("token", "Mint a websocket token")
	tokenSubject = tokenCmd.Flag("subject", "token subject").Default("companion").String()
	tokenControl = tokenCmd.Flag("control", "allow commands, not only status").Bool()
	tokenTTL     = tokenCmd.Flag("ttl", "token lifetime, 0 never expires").Default("720h").Duration()

	qrCmd   = application.Command("qr", "Print the companion pairing QR code")
	qrToken = qrCmd.Flag("with-token", "embed a control token").Bool()

	ctlCmd     = application.Command("ctl", "Send a command to a running bridge")
	ctlArgs    = ctlCmd.Arg("command", "command and arguments, e.g. status, start, set exposureSec 90").Required().Strings()
	ctlTimeout = ctlCmd.Flag("timeout", "reply timeout").Default("10s").Duration()

	upgrader = websocket.Upgrader{}

	logLevels = map[string]log.Level{
		"trace": log.TraceLevel,
		"debug": log.DebugLevel,
		"info":  log.InfoLevel,
		"warn":  log.WarnLevel,
		"error": log.ErrorLevel,
	}
	logFormats = map[string]log.Formatter{
		"text": &log.TextFormatter{},
		"json": &log.JSONFormatter{},
	}
)

var version string

type MessagePayload struct {
	Message string `json:"message"`
}

func enableCors(w *http.ResponseWriter, r *http.Request) {
	(*w).Header().Set("Access-Control-Allow-Origin", (*r).Header.Get("Origin"))
	(*w).Header().Set("Access-Control-Allow-Credentials", "true")
	(*w).Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
	(*w).Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

func returnErrorMessage(w http.ResponseWriter, status int, err error) {
	jsonRaw, _ := json.Marshal(MessagePayload{Message: err.Error()})
	http.Error(w, string(jsonRaw), status)
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	application.Version(version)
	command := kingpin.MustParse(application.Parse(os.Args[1:]))

	log.SetLevel(logLevels[*logLevel])
	log.SetFormatter(logFormats[*logFormat])

	switch command {
	case ctlCmd.FullCommand():
		reply, err := cli.SendCommand(*ctlSocket, strings.Join(*ctlArgs, " "), *ctlTimeout)
		if err != nil {
			log.Fatalf("control socket %s: %v", *ctlSocket, err)
		}
		fmt.Println(reply)
		return
	}

	prefs, err := preference.Load(*configDir, *jwtSecretFile)
	if err != nil {
		log.Fatalf("can't load settings from %s: %v", *configDir, err)
	}

	switch command {
	case tokenCmd.FullCommand():
		token, err := auth.NewToken(prefs.JwtSecret(), *tokenSubject, auth.Roles{Read: true, Control: *tokenControl}, *tokenTTL)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(token)
	case qrCmd.FullCommand():
		descriptor := cli.PairingDescriptor{Name: ble.AdvertisedName(*bleName), Service: remote.ServiceUUID}
		if *qrToken {
			descriptor.Token, err = auth.NewToken(prefs.JwtSecret(), "companion", auth.Roles{Read: true, Control: true}, 0)
			if err != nil {
				log.Fatal(err)
			}
		}
		if err := cli.PrintPairingQR(os.Stdout, descriptor); err != nil {
			log.Fatal(err)
		}
	default:
		serve(prefs)
	}
}

func serve(prefs *preference.Store) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack := ble.NewStack()
	peripheral := ble.NewPeripheral(stack, *bleName)
	bridge := newBridge(prefs, stack, peripheral)
	defer bridge.close()

	stack.Route(bridge.supervisor, bridge.gateway)
	if err := stack.Enable(); err != nil {
		log.Fatalf("can't enable bluetooth adapter: %v", err)
	}
	if err := peripheral.Register(bridge.gateway); err != nil {
		log.Fatalf("can't register companion service: %v", err)
	}
	if err := peripheral.Advertise(); err != nil {
		log.Errorf("can't advertise: %v", err)
	}

	bridge.registerMetrics()
	bridge.autoConnect()

	go func() {
		if err := cli.BindControlSocket(ctx, *ctlSocket, bridge.handleCtl); err != nil {
			log.Errorf("control socket %s: %v", *ctlSocket, err)
		}
	}()

	upgrader.CheckOrigin = bridge.checkWebsocketOrigin

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws", bridge.websocket)
	mux.HandleFunc("/api/config", bridge.showConfig)
	mux.HandleFunc("/api/config/preferences/save", bridge.postPreferences)
	mux.Handle(*metricsPath, promhttp.HandlerFor(bridge.promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "pong")
	})

	server := &http.Server{Addr: *listenHost + ":" + *listenPort, Handler: mux}
	go func() {
		log.Infof("Bind: http://%s:%s", *listenHost, *listenPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	bridge.run(ctx, *tickInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
}
