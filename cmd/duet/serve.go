package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/duet"
	"github.com/yaoapp/duet/channel"
	"github.com/yaoapp/duet/dom"
	"github.com/yaoapp/kun/log"
	"golang.org/x/sync/errgroup"
)

// router the gin engine, every websocket connection gets its own main thread
func router(option *duet.Option) (*gin.Engine, *channel.Upgrader, error) {
	config, err := jsoniter.Marshal(map[string]interface{}{
		"protocols": option.Protocols,
		"limit":     option.Limit,
	})
	if err != nil {
		return nil, nil, err
	}

	upgrader, err := channel.NewUpgrader(option.Name, func(port channel.Port) {
		mt, err := duet.NewMainThread(*option, port)
		if err != nil {
			log.Error("[serve] %s %s", option.Name, err.Error())
			port.Close()
			return
		}

		err = mt.Start()
		if err != nil {
			log.Error("[serve] %s %s", option.Name, err.Error())
			mt.Close()
			return
		}

		if conn, ok := port.(*channel.Conn); ok {
			go func() {
				<-conn.Done()
				mt.Close()
				log.Trace("[serve] %s main thread closed", option.Name)
			}()
		}
	}, config)
	if err != nil {
		return nil, nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	upgrader.SetRouter(r)
	return r, upgrader, nil
}

// serve accept the background connections until interrupted
func serve(option *duet.Option) error {
	r, upgrader, err := router(option)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: option.Listen, Handler: r}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("[serve] %s listening on ws://%s%s", option.Name, option.Listen, upgrader.Path())
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdown)
	})

	return g.Wait()
}

// connect run a background over the websocket, record the log and print the main thread tree
func connect(w io.Writer, url string, option *duet.Option, file string) error {
	conn, err := channel.Dial(url, option.Protocols, option.Limit)
	if err != nil {
		return err
	}

	background := duet.NewBackground(*option, conn)
	err = background.Start()
	if err != nil {
		conn.Close()
		return err
	}
	defer background.Close()

	if file != "" {
		ops, err := readLog(file)
		if err != nil {
			return err
		}

		rejected := 0
		err = background.Update(func(doc *dom.Document) error {
			for _, op := range ops {
				if err := doc.Record(op); err != nil {
					rejected++
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if rejected > 0 {
			fmt.Fprintf(w, "%d of %d operations rejected\n", rejected, len(ops))
		}
	}

	err = background.Flush()
	if err != nil {
		return err
	}

	tree, err := background.Snapshot(context.Background())
	if err != nil {
		return err
	}

	printTree(w, tree)
	return nil
}
