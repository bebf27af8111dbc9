// Stress tool: fires concurrent decrements at a running server and checks
// that exactly initialStock of them succeed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	initialStock  = 20
	totalRequests = 50
)

type adjustRequest struct {
	ProductID      string `json:"product_id"`
	QuantityChange int    `json:"quantity_change"`
	TransactionID  string `json:"transaction_id"`
}

type adjustResponse struct {
	Success       bool `json:"success"`
	NewStockLevel int  `json:"new_stock_level"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	productID := flag.String("product", "stress-test-item", "product id to hammer")
	flag.Parse()

	// The product must exist in the ledger with stock = initialStock before
	// the run, e.g.:
	//   INSERT INTO products (product_id, name, price, stock)
	//   VALUES ('stress-test-item', 'Stress Test', 1.00, 20);

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			body, _ := json.Marshal(adjustRequest{
				ProductID:      *productID,
				QuantityChange: -1,
				TransactionID:  fmt.Sprintf("stress-%d", n),
			})
			resp, err := http.Post(*baseURL+"/api/stock/adjust", "application/json", bytes.NewReader(body))
			if err != nil {
				log.Printf("request %d failed: %v", n, err)
				failCount.Add(1)
				return
			}
			defer resp.Body.Close()

			var result adjustResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				log.Printf("request %d: bad response: %v", n, err)
				failCount.Add(1)
				return
			}
			if result.Success {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && fail == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d adjustments succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}
}
