package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/cart-store/internal/adapter/storage"
	"github.com/rl1809/cart-store/internal/core/domain"
	"github.com/rl1809/cart-store/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	mysqlDSN      = "root:root@tcp(localhost:3306)/rocketshoes?parseTime=true"
	productID     = 4242
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Initialize MySQL
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()

	catalog := storage.NewMySQLCatalog(db)
	if err := catalog.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	product := domain.Product{ID: productID, Title: "Stress Runner", Price: 99.9}
	if err := catalog.SaveProduct(ctx, product, initialStock); err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	// Fresh session so earlier runs don't leak in
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	sessionID := uuid.NewString()
	sessions := service.NewSessions(catalog, storage.NewRedisKV(rdb), nil, service.DefaultCartKey, logger)
	store, err := sessions.Get(ctx, sessionID)
	if err != nil {
		log.Fatalf("failed to load cart: %v", err)
	}
	cartKey := service.KeyFor(service.DefaultCartKey, sessionID)
	defer rdb.Del(ctx, cartKey)

	// Counters
	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := store.AddProduct(ctx, productID)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				outOfStockCount.Add(1)
			default:
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	rejected := outOfStockCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", rejected)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && rejected == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d adds succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d (%d failed)\n",
			initialStock, totalRequests-initialStock, success, rejected, fail)
	}

	// Verify the persisted cart in Redis
	blob, _ := rdb.Get(ctx, cartKey).Result()
	var persisted domain.Cart
	json.Unmarshal([]byte(blob), &persisted)

	finalAmount := 0
	if i := persisted.Find(productID); i >= 0 {
		finalAmount = persisted[i].Amount
	}
	fmt.Printf("Persisted Amount: %d\n", finalAmount)

	if finalAmount == initialStock {
		fmt.Println("PASS: Cart amount matches stock, no lost updates")
	} else {
		fmt.Printf("FAIL: Expected amount %d, got %d\n", initialStock, finalAmount)
	}
}
