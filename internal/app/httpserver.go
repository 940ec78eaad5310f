package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type HTTPServer struct {
	srv  *http.Server
	done chan struct{}
}

func StartHTTP(ctx context.Context, addr string, h http.Handler, log *zap.Logger) *HTTPServer {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s := &HTTPServer{srv: srv, done: make(chan struct{})}

	go func() {
		// закрываем аккуратно при Shutdown
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http-сервер упал", zap.Error(err))
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	log.Info("http-сервер запущен", zap.String("addr", addr))
	return s
}

// Done закрывается после остановки сервера.
func (s *HTTPServer) Done() <-chan struct{} { return s.done }
