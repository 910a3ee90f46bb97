package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"time"
)

type health struct {
	Goroutines       int `json:"goroutines"`
	WebSocketClients int `json:"websocket_clients"`
	Sessions         struct {
		Total int `json:"total_sessions"`
	} `json:"sessions"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/api/v1/health", "health endpoint")
	every := flag.Duration("every", 5*time.Second, "poll interval")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	// Goroutines should return to baseline once ticker clients disconnect
	for {
		h, err := fetch(client, *url)
		if err != nil {
			fmt.Printf("Error fetching health: %v\n", err)
		} else {
			fmt.Printf("[%s] Goroutines: %d  WebSocket clients: %d  Sessions: %d\n",
				time.Now().Format("2006-01-02 15:04:05"), h.Goroutines, h.WebSocketClients, h.Sessions.Total)
		}
		time.Sleep(*every)
	}
}

func fetch(client *http.Client, url string) (*health, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}
