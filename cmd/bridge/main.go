/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command bridge relays a document-database wire protocol connection to a
// single upstream, exactly as tools/bridge in the original implementation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	libmap "github.com/go-viper/mapstructure/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/mongobridge/duration"
	"github.com/nabbar/mongobridge/file/perm"
	"github.com/nabbar/mongobridge/internal/address"
	"github.com/nabbar/mongobridge/internal/forwarder"
	"github.com/nabbar/mongobridge/internal/listener"
	"github.com/nabbar/mongobridge/internal/metrics"
	"github.com/nabbar/mongobridge/internal/transport"
	"github.com/nabbar/mongobridge/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "bridge",
		Short:        "Relay a document-database wire connection to an upstream",
		Args:         cobra.NoArgs,
		SilenceUsage: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 27017, "local port to listen on")
	flags.String("dest", "", "upstream host:port to forward to")
	flags.String("config", "", "optional config file (additive with flags)")
	flags.String("metrics-addr", "", "address to serve /metrics on, disabled when empty")
	flags.String("log-level", "info", "log level: panic,fatal,error,warn,info,debug")
	flags.String("log-format", "text", "log format: text,json")
	flags.String("connect-timeout", "5s", "bound on each upstream connect attempt (e.g. 5s, 1500ms)")
	flags.String("reconnect-interval", "500ms", "delay between upstream reconnect attempts")
	flags.String("unix-socket-perm", "", "permission bits applied to the unix socket file (e.g. 0600), left at umask default when empty")

	_ = v.BindPFlags(flags)

	cobra.OnInitialize(func() {
		if cfg, _ := flags.GetString("config"); cfg != "" {
			v.SetConfigFile(cfg)
			_ = v.ReadInConfig()
		}
	})

	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	lvl := logger.GetLevelString(v.GetString("log-level"))
	format := logger.GetFormatString(v.GetString("log-format"))
	log := logger.New(lvl, format, os.Stderr)

	port := v.GetInt("port")
	dest := v.GetString("dest")
	if dest == "" {
		return fmt.Errorf("bridge: --dest is required")
	}

	host, destPort, err := address.ParseHostPort(dest)
	if err != nil {
		return err
	}

	upEndpoints, err := address.Resolve(host, destPort, address.Options{})
	if err != nil {
		return err
	}

	// durations are decoded through Viper's mapstructure pipeline rather than
	// duration.Parse directly, so config-file values go through the same
	// decode hook as flag values.
	var durCfg struct {
		ConnectTimeout    duration.Duration `mapstructure:"connect-timeout"`
		ReconnectInterval duration.Duration `mapstructure:"reconnect-interval"`
	}
	if err := v.Unmarshal(&durCfg, viper.DecodeHook(duration.ViperDecoderHook())); err != nil {
		return fmt.Errorf("bridge: invalid duration flag: %w", err)
	}
	connectTimeout := durCfg.ConnectTimeout
	reconnectInterval := durCfg.ReconnectInterval

	// unix-socket-perm is optional and empty by default (left at umask), so
	// it is decoded on its own rather than through the blanket Unmarshal
	// above: perm.ViperDecoderHook rejects an empty string, which is the
	// common case when the flag is not set.
	var sockPerm perm.Perm
	if raw := v.GetString("unix-socket-perm"); raw != "" {
		var permCfg struct {
			UnixSocketPerm perm.Perm `mapstructure:"unix-socket-perm"`
		}
		decoder, err := libmap.NewDecoder(&libmap.DecoderConfig{
			DecodeHook: perm.ViperDecoderHook(),
			Result:     &permCfg,
		})
		if err != nil {
			return fmt.Errorf("bridge: --unix-socket-perm: %w", err)
		}
		if err := decoder.Decode(map[string]interface{}{"unix-socket-perm": raw}); err != nil {
			return fmt.Errorf("bridge: --unix-socket-perm: %w", err)
		}
		sockPerm = permCfg.UnixSocketPerm
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	var met *metrics.Metrics
	status := bridgeStatus{
		Port:              port,
		Dest:              dest,
		ConnectTimeout:    connectTimeout,
		ReconnectInterval: reconnectInterval,
		UnixSocketPerm:    sockPerm,
	}
	if addr := v.GetString("metrics-addr"); addr != "" {
		met = metrics.New(reg)
		go serveMetrics(ctx, addr, reg, status, log)
	}

	proxy := &forwarder.Proxy{
		Upstream:          upEndpoints[0],
		IDs:               transport.NewIDGenerator(clockwork.NewRealClock()),
		Metrics:           met,
		Log:               log.Logrus(),
		ConnectTimeout:    connectTimeout,
		ReconnectInterval: reconnectInterval,
	}

	l := listener.New(log.Logrus())
	l.UnixSocketPerm = sockPerm
	log.Info("bridge: starting", logger.Fields{"port": port, "dest": dest})

	err = l.ListenAndServe(ctx, "", port, address.Options{IPv6Enabled: address.DetectIPv6(), UnixEnabled: true}, func(conn net.Conn) {
		proxy.Serve(ctx, conn)
	})

	transport.GlobalRegistry().CloseAll()
	return err
}

// bridgeStatus is served as JSON on /status. ConnectTimeout, ReconnectInterval
// and UnixSocketPerm marshal through duration.Duration's and perm.Perm's own
// MarshalJSON, rendering as their string notation ("5s", "0644") rather than
// as raw integers.
type bridgeStatus struct {
	Port              int               `json:"port"`
	Dest              string            `json:"dest"`
	ConnectTimeout    duration.Duration `json:"connectTimeout"`
	ReconnectInterval duration.Duration `json:"reconnectInterval"`
	UnixSocketPerm    perm.Perm         `json:"unixSocketPerm"`
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, status bridgeStatus, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error("bridge: failed encoding status", logger.Fields{}.Add("error", err))
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("bridge: metrics server failed", logger.Fields{}.Add("error", err))
	}
}
