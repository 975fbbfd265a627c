package main

import (
	"chatserver/internal/chat"
	"chatserver/internal/config"
	clog "chatserver/internal/log"
	"chatserver/internal/server"
	"chatserver/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志并启动 Gin 服务。
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	clog.Init(cfg.Env)

	hub := ws.NewHub(log.Logger)
	svc := chat.NewService(hub, chat.TimestampIDs{}, log.Logger)

	r := server.SetupRouter(cfg, svc, hub)
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("chat server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
