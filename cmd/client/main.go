package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nsf/termbox-go"

	"pixelroom/config"
	"pixelroom/logging"
	"pixelroom/presence"
	"pixelroom/profile"
	"pixelroom/remote"
)

const opTimeout = 10 * time.Second

// 终端客户端：方向键移动自己的标记，实时看到其他玩家
func main() {
	var cfg config.ClientConfig
	if err := config.ParseEnv(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.Init(cfg.LogFile)
	defer logging.Sync()

	// 缺少配置只记录错误，界面照常运行（网络不可用）
	if missing := cfg.Missing(); len(missing) > 0 {
		log.Errorf("missing configuration %v; networking will not work", missing)
	}

	prof, err := profile.Open(cfg.AppName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sess := presence.NewSession(presence.Deps{
		Store:   remote.NewRows(cfg.URL, cfg.APIKey),
		Channel: remote.NewRealtime(cfg.URL, cfg.APIKey, log),
		Profile: prof,
		Log:     log,
	})
	defer sess.Close()

	if err := termbox.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer termbox.Close()
	termbox.SetOutputMode(termbox.Output256)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	sess.Restore(ctx)
	cancel()

	run(sess)
	log.Info("client exiting")
}

// run 单协程事件循环：按键、频道广播、节流 ticker 串行处理
func run(sess *presence.Session) {
	events := make(chan termbox.Event)
	go func() {
		for {
			events <- termbox.PollEvent()
		}
	}()

	ticker := time.NewTicker(presence.BroadcastInterval / 2)
	defer ticker.Stop()

	var ui screen
	ui.draw(sess)
	for {
		select {
		case ev := <-events:
			if ev.Type == termbox.EventError {
				return
			}
			if quit := ui.handle(sess, ev); quit {
				return
			}
		case msg, ok := <-sess.Events():
			if !ok {
				sess.ConnectionLost()
			} else {
				sess.HandleMessage(msg)
			}
		case <-ticker.C:
			sess.Sync().Flush()
		}
		ui.draw(sess)
	}
}
