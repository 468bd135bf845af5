// seed_catalog.go seeds countries, dimensions and indicators with their
// weights for one year from a YAML catalog through the Ranking API.
//
// Usage:
//
//	go run scripts/seed_catalog.go -catalog catalog.yaml -api http://localhost:8700 -token $RANKING_ADMIN_TOKEN
//
// Catalog format:
//
//	year: 2024
//	countries:
//	  - {name: Chile, code: CL, region: South America}
//	dimensions:
//	  - name: Economy
//	    weight: 40
//	    indicators:
//	      - {name: GDP per capita, weight: 60, normalization_type: MinMax}
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

type country struct {
	Name   string `yaml:"name" json:"name"`
	Code   string `yaml:"code" json:"code"`
	Region string `yaml:"region" json:"region,omitempty"`
}

type indicator struct {
	Name              string `yaml:"name"`
	Description       string `yaml:"description"`
	NormalizationType string `yaml:"normalization_type"`
	Weight            int    `yaml:"weight"`
}

type dimension struct {
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description"`
	DisplayOrder *int        `yaml:"display_order"`
	Weight       int         `yaml:"weight"`
	Indicators   []indicator `yaml:"indicators"`
}

type catalog struct {
	Year       int         `yaml:"year"`
	Countries  []country   `yaml:"countries"`
	Dimensions []dimension `yaml:"dimensions"`
}

type client struct {
	api   string
	token string
	http  *http.Client
}

// post sends body as JSON and decodes the created resource's id.
func (c *client) post(path string, body interface{}) (int64, error) {
	data, _ := json.Marshal(body)
	req, err := http.NewRequest("POST", c.api+path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func main() {
	catalogPath := flag.String("catalog", "catalog.yaml", "path to YAML catalog")
	apiURL := flag.String("api", "http://localhost:8700", "Ranking API base URL")
	token := flag.String("token", os.Getenv("RANKING_ADMIN_TOKEN"), "admin bearer token")
	dryRun := flag.Bool("dry-run", false, "print the catalog without posting")
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		log.Fatalf("read catalog: %v", err)
	}
	var cat catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		log.Fatalf("parse catalog: %v", err)
	}
	if cat.Year == 0 {
		log.Fatalf("catalog has no year")
	}

	log.Printf("parsed %d countries and %d dimensions for %d", len(cat.Countries), len(cat.Dimensions), cat.Year)

	if *dryRun {
		for _, c := range cat.Countries {
			fmt.Printf("country %s (%s)\n", c.Name, c.Code)
		}
		for _, d := range cat.Dimensions {
			fmt.Printf("dimension %s weight=%d\n", d.Name, d.Weight)
			for _, ind := range d.Indicators {
				fmt.Printf("  indicator %s weight=%d\n", ind.Name, ind.Weight)
			}
		}
		return
	}

	c := &client{api: *apiURL, token: *token, http: &http.Client{}}
	created, skipped := 0, 0
	for _, country := range cat.Countries {
		if _, err := c.post("/api/v1/countries", country); err != nil {
			log.Printf("skip country %q: %v", country.Code, err)
			skipped++
			continue
		}
		created++
	}

	for _, d := range cat.Dimensions {
		dimID, err := c.post("/api/v1/dimensions", map[string]interface{}{
			"name":          d.Name,
			"description":   d.Description,
			"year":          cat.Year,
			"display_order": d.DisplayOrder,
			"weight":        d.Weight,
		})
		if err != nil {
			log.Printf("skip dimension %q and its indicators: %v", d.Name, err)
			skipped += 1 + len(d.Indicators)
			continue
		}
		created++

		for _, ind := range d.Indicators {
			_, err := c.post("/api/v1/indicators", map[string]interface{}{
				"name":               ind.Name,
				"description":        ind.Description,
				"normalization_type": ind.NormalizationType,
				"dimension_id":       dimID,
				"year":               cat.Year,
				"weight":             ind.Weight,
			})
			if err != nil {
				log.Printf("skip indicator %q: %v", ind.Name, err)
				skipped++
				continue
			}
			created++
		}
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}
