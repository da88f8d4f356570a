package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bankledger/internal/config"
	"bankledger/internal/infrastructure/cache"
	"bankledger/internal/infrastructure/database"
	"bankledger/internal/infrastructure/mq"
	"bankledger/internal/job"
	"bankledger/pkg/idgen"
)

// ledgerd 账本后台进程：负责事件投递和流水补偿。
// 账本引擎本身是无状态的库（internal/service），由上层调用方按需引用；
// 多个 ledgerd 实例可以安全地指向同一份存储。
func main() {
	// 加载配置
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg := config.LoadConfig(configPath)

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	reconciler := job.NewReconciler(db, redisClient, cfg)
	go reconciler.Start(ctx)

	log.Println("ledgerd 启动完成")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	log.Println("服务已关闭")
}
