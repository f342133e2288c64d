package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zipfx/zipfx/cmd/flags"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/server"
)

var ServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the http api",
	Run: func(cmd *cobra.Command, args []string) {
		e := newEnv()
		if !flags.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		r := gin.New()
		r.Use(gin.LoggerWithWriter(log.StandardLogger().Out), gin.RecoveryWithWriter(log.StandardLogger().Out))
		server.Init(r, e.coordinator, e.bus, e.recent)

		addr := fmt.Sprintf("%s:%d", conf.Conf.Scheme.Address, conf.Conf.Scheme.Port)
		srv := &http.Server{Addr: addr, Handler: r}
		go func() {
			log.Infof("start HTTP server @ %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to start http: %s", err.Error())
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutdown server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("failed to shutdown http: %s", err.Error())
		}
		for _, s := range e.coordinator.Sessions().List() {
			if err := e.coordinator.Close(s, false); err != nil {
				log.Warnf("close %s: %v", s.Info.Path, err)
			}
		}
		e.close()
		log.Println("Server exit")
	},
}

func init() {
	RootCmd.AddCommand(ServerCmd)
}
