package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"certverify/internal/config"
	"certverify/internal/db"
	"certverify/internal/handlers"
	"certverify/internal/ocr"
	"certverify/internal/router"
	"certverify/internal/storage"
	"certverify/internal/verify"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	db.Init(cfg.DatabaseURL)

	ctx := context.Background()
	ocrClient, err := ocr.NewVisionClient(ctx, cfg.GoogleCredentials)
	if err != nil {
		log.Fatal(err)
	}
	defer ocrClient.Close()

	var uploader verify.Uploader
	if cfg.StorageBucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, cfg.StorageBucket)
		if err != nil {
			log.Println("image storage disabled:", err)
		} else {
			defer gcs.Close()
			uploader = gcs
		}
	}

	store := db.NewStore(db.DB)
	var svcStore verify.Store = store
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Println("invalid REDIS_URL, cache disabled:", err)
		} else {
			svcStore = db.NewCachedStore(store, redis.NewClient(opt))
		}
	}

	svc := verify.NewService(svcStore, ocrClient, uploader)
	if cfg.GeminiAPIKey != "" {
		key := cfg.GeminiAPIKey
		svc.SetFallback(func(ctx context.Context, text string) (ocr.ExtractedFields, error) {
			return ocr.ParseWithGemini(ctx, key, text)
		})
	}

	handlers.Setup(svc)

	addr := ":" + cfg.Port
	fmt.Println("listening on", addr)
	log.Fatal(http.ListenAndServe(addr, router.RegisterRouter()))
}
