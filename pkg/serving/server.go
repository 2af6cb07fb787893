package serving

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"k8s.io/klog"
)

func RunServer(ctx context.Context, addr string, artifactDirPath string, statusPath string) error {
	router := mux.NewRouter().StrictSlash(true)
	RegisterHandlers(router, artifactDirPath, statusPath)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	serverClosedChan := make(chan struct{})
	defer close(serverClosedChan)

	wg.Add(1)
	go func() {
		defer wg.Done()

		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer shutdownCtxCancel()
			klog.Info("Shutting down the server.")
			err := srv.Shutdown(shutdownCtx)
			if err != nil {
				klog.Fatal(err)
			}
		case <-serverClosedChan:
			break
		}
	}()

	klog.Infof("Starting listening on %q", srv.Addr)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		klog.Fatalf("ListenAndServe failed: %v", err)
	}

	return nil
}
