package main

import (
	"time"

	"github.com/vasquezandres/clip/internal/config"
	"github.com/vasquezandres/clip/internal/db"
	clog "github.com/vasquezandres/clip/internal/log"
	"github.com/vasquezandres/clip/internal/server"
	"github.com/vasquezandres/clip/internal/store"
	"github.com/vasquezandres/clip/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	st := store.NewGormStore(gdb)
	stop := make(chan struct{})
	defer close(stop)
	// 存储层自行回收过期记录，actor 注册表回收空闲实例
	st.StartReaper(time.Minute, stop)

	hub := ws.NewHub(st, cfg)
	hub.Sweep(time.Minute, stop)

	r := server.SetupRouter(cfg, hub)
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("clip relay started")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
