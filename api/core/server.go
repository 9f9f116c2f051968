package core

import (
	"net/http"

	"github.com/anoixa/photo-mailer/config"
)

// NewServer 创建 http.Server
func NewServer(cfg *config.Config, deps *ServerDependencies) (*http.Server, func()) {
	router, cleanup := SetupRouter(cfg, deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, cleanup
}
