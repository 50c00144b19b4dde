package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referral-points-system/internal/address"
	"referral-points-system/internal/blockchain"
	"referral-points-system/internal/config"
	"referral-points-system/internal/handler"
	"referral-points-system/internal/models"
	"referral-points-system/internal/oracle"
	"referral-points-system/internal/rarity"
	"referral-points-system/internal/repository"
	"referral-points-system/internal/scheduler"
	"referral-points-system/internal/service"
	"referral-points-system/pkg/errors"
	"referral-points-system/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database:", err)
	}

	codeRepo := repository.NewCodeRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)
	stakerRepo := repository.NewStakerRepository(db)
	blockRepo := repository.NewBlockRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evmClient, solClient := initChainClients(cfg)
	if evmClient != nil {
		defer evmClient.Close()
		if cfg.EVM.IndexStakers {
			indexer := blockchain.NewStakerIndexer(&cfg.EVM, &cfg.Staking, evmClient, blockRepo, stakerRepo)
			go indexer.Start(ctx)
		}
	}
	chainOracle := blockchain.NewOracle(&cfg.Staking, evmClient, solClient)

	validator := address.NewValidator()
	generator := rarity.NewGenerator(rarity.Options{
		MaxAttempts:       cfg.Referral.MaxCodeAttempts,
		MaxCommonAttempts: cfg.Referral.MaxCommonAttempts,
	})

	var stakers oracle.StakerSource = stakerRepo

	codeSvc := service.NewCodeService(codeRepo, referralRepo, generator, validator, &cfg.Referral)
	referralSvc := service.NewReferralService(codeSvc, referralRepo, validator, &cfg.Referral)
	pointsSvc := service.NewPointsService(referralRepo, snapshotRepo, chainOracle, chainOracle, validator, &cfg.Referral, &cfg.Staking)
	leaderboardSvc := service.NewLeaderboardService(leaderboardRepo, referralRepo, stakers, pointsSvc, validator, &cfg.Leaderboard)
	snapshotSvc := service.NewSnapshotService(referralRepo, snapshotRepo, chainOracle, chainOracle, validator, &cfg.Staking)
	overviewSvc := service.NewOverviewService(codeRepo, referralRepo, stakerRepo, leaderboardRepo, &cfg.Staking)

	jobs := scheduler.NewScheduler(snapshotSvc, leaderboardSvc, cfg.Snapshot.Cron, cfg.Leaderboard.RefreshCron)
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer jobs.Stop()

	router := handler.NewRouter(
		handler.NewReferralHandler(codeSvc, referralSvc, pointsSvc),
		handler.NewLeaderboardHandler(leaderboardSvc, jobs),
		handler.NewStatsHandler(snapshotSvc, overviewSvc),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port ", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.New(errors.ErrDatabaseConnect, "连接数据库失败", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

// initChainClients 未配置 RPC 的链返回 nil，对应的查询按未配置处理
func initChainClients(cfg *config.Config) (*blockchain.EVMClient, *blockchain.SolanaClient) {
	var evmClient *blockchain.EVMClient
	if cfg.EVM.RPCURL != "" {
		client, err := blockchain.NewEVMClient(&cfg.EVM)
		if err != nil {
			logger.WithError(err).Error("Failed to create EVM client, staking and EVM balances unavailable")
		} else {
			evmClient = client
		}
	} else {
		logger.Warn("evm.rpc_url not set, EVM queries not configured")
	}

	var solClient *blockchain.SolanaClient
	if cfg.Solana.RPCURL != "" {
		solClient = blockchain.NewSolanaClient(&cfg.Solana)
	} else {
		logger.Warn("solana.rpc_url not set, Solana queries not configured")
	}

	return evmClient, solClient
}
