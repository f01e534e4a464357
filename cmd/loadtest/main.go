package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"genmart/internal/middleware"
	"genmart/internal/service"
)

// Result records the HTTP outcome of one request.
type Result struct {
	Status int
	Body   string
	Err    error
}

type envelope struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

type product struct {
	ID    uint  `json:"id"`
	Stock int64 `json:"stock"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	slug := flag.String("slug", "", "generator slug to sell out")
	stock := flag.Int64("stock", 1, "units to put on the shelf before the test")
	secret := flag.String("secret", "dev-jwt-secret", "JWT secret shared with the API")

	// oversell check: many customers race for the last units
	nUsers := flag.Int("users", 200, "distinct customers")
	concurrency := flag.Int("c", 50, "max concurrency")
	burst := flag.Int("burst", 50, "requests from one customer in the rate limit check")
	flag.Parse()

	if *slug == "" {
		panic("-slug is required")
	}
	client := &http.Client{Timeout: 5 * time.Second}
	key := []byte(*secret)

	admin := mustToken(key, service.Actor{UserID: "loadtest-admin", Role: service.RoleAdmin})
	p, err := getProduct(client, *baseURL, *slug)
	if err != nil {
		panic(fmt.Sprintf("read product: %v", err))
	}
	if delta := *stock - p.Stock; delta != 0 {
		url := fmt.Sprintf("%s/api/admin/products/generators/%d/stock", *baseURL, p.ID)
		if _, err := doJSON(client, http.MethodPatch, url, admin, nil, map[string]int64{"delta": delta}); err != nil {
			panic(fmt.Sprintf("set stock: %v", err))
		}
	}
	fmt.Printf("stock set: product=%d stock=%d\n", p.ID, *stock)

	fmt.Printf("start oversell test: product=%d users=%d concurrency=%d\n", p.ID, *nUsers, *concurrency)
	results := run(*nUsers, *concurrency, func(i int) Result {
		token := mustToken(key, service.Actor{UserID: fmt.Sprintf("loadtest-%d", i+1), Role: service.RoleCustomer})
		return checkout(client, *baseURL, token, p.ID, "")
	})
	printSummary("oversell", results)

	after, err := getProduct(client, *baseURL, *slug)
	if err != nil {
		fmt.Println("stock check err:", err)
	} else {
		sold := count(results, http.StatusCreated)
		fmt.Printf("final stock: %d, orders created: %d\n", after.Stock, sold)
		if after.Stock < 0 || int64(sold) > *stock {
			fmt.Println("OVERSOLD")
		}
	}

	// one customer hammering checkout should see 429s once over RATE_LIMIT
	fmt.Printf("\nstart rate limit test: one customer, %d requests\n", *burst)
	token := mustToken(key, service.Actor{UserID: "loadtest-burst", Role: service.RoleCustomer})
	results2 := run(*burst, *burst, func(i int) Result {
		return checkout(client, *baseURL, token, p.ID, fmt.Sprintf("burst-%d", i))
	})
	printSummary("rate_limit", results2)
}

func mustToken(secret []byte, a service.Actor) string {
	token, err := middleware.SignToken(secret, a, time.Hour)
	if err != nil {
		panic(err)
	}
	return token
}

func run(total, concurrency int, fn func(i int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func checkout(client *http.Client, baseURL, token string, productID uint, idemKey string) Result {
	body := map[string]any{
		"lines": []map[string]any{
			{"product_id": productID, "type": "GENERATOR", "quantity": 1},
		},
		"shipping_address": map[string]string{
			"full_name": "Load Test",
			"phone":     "03001234567",
			"line1":     "Plot 1, Industrial Area",
			"city":      "Lahore",
			"province":  "Punjab",
		},
		"payment_method": "COD",
	}
	headers := map[string]string{}
	if idemKey != "" {
		headers["Idempotency-Key"] = idemKey
	}
	r, err := doJSON(client, http.MethodPost, baseURL+"/api/orders", token, headers, body)
	if err != nil && r.Status == 0 {
		return Result{Err: err}
	}
	return r
}

func printSummary(name string, results []Result) {
	byStatus := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		byStatus[r.Status]++
	}
	codes := make([]int, 0, len(byStatus))
	for code := range byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range codes {
		fmt.Printf("  %d -> %d\n", code, byStatus[code])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

func count(results []Result, status int) int {
	n := 0
	for _, r := range results {
		if r.Err == nil && r.Status == status {
			n++
		}
	}
	return n
}

// doJSON sends body as JSON with an optional bearer token. A status of 300
// or above is returned as an error alongside the result.
func doJSON(client *http.Client, method, url, token string, headers map[string]string, body any) (Result, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Result{}, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		return Result{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	res := Result{Status: resp.StatusCode, Body: string(b)}
	if resp.StatusCode >= 300 {
		return res, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	return res, nil
}

func getProduct(client *http.Client, baseURL, slug string) (product, error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/generators/%s", baseURL, slug))
	if err != nil {
		return product{}, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return product{}, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out envelope
	if err := json.Unmarshal(b, &out); err != nil {
		return product{}, err
	}
	var p product
	if err := json.Unmarshal(out.Data, &p); err != nil {
		return product{}, err
	}
	return p, nil
}
