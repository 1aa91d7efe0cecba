// Command chatmock is a stand-in chat backend for development: it implements
// the collaborator HTTP contract against sidecar .chat files and returns
// canned answers instead of calling an AI provider.
package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/phuslu/log"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8765", "listen address")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := log.InfoLevel
	if *verbose {
		level = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level:      level,
		TimeFormat: "15:04:05",
		Writer:     &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true},
	}

	srv := newServer(newStorage())
	log.Info().Str("addr", *addr).Msg("chatmock listening")
	if err := http.ListenAndServe(*addr, srv); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
