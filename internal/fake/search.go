package fake

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kraal-market/client/internal/platform/httpx"
)

// The production smart search runs a language model over the query; the fake
// stands in with keyword heuristics that are deterministic for tests: species
// synonyms, an "under <price>" cap, and free-text hits on the listing fields.

func (s *Server) searchRoutes(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(s.optionalAuth)
		g.Get("/smart", s.smartSearch)
	})
}

var speciesSynonyms = map[string]string{
	"cattle": "cattle", "cow": "cattle", "cows": "cattle",
	"bull": "cattle", "bulls": "cattle", "heifer": "cattle", "heifers": "cattle",
	"sheep": "sheep", "ram": "sheep", "rams": "sheep",
	"ewe": "sheep", "ewes": "sheep", "lamb": "sheep", "lambs": "sheep",
	"goat": "goat", "goats": "goat", "buck": "goat", "bucks": "goat",
	"doe": "goat", "does": "goat",
	"poultry": "poultry", "chicken": "poultry", "chickens": "poultry",
	"broiler": "poultry", "broilers": "poultry", "layer": "poultry", "layers": "poultry",
}

var searchStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "for": true, "in": true, "at": true,
	"near": true, "around": true, "with": true, "and": true, "of": true,
	"to": true, "some": true, "me": true, "my": true, "i": true, "need": true,
	"want": true, "buy": true, "looking": true,
}

type searchIntent struct {
	species       string
	maxPriceMinor int64
	terms         []string
}

// parseSearchIntent reduces a free-text query to the constraints the fake
// honors. Unrecognised words survive as free-text terms.
func parseSearchIntent(query string) searchIntent {
	var intent searchIntent
	tokens := strings.Fields(strings.ToLower(query))
	for i := 0; i < len(tokens); i++ {
		token := strings.Trim(tokens[i], ",.!?")
		if token == "" {
			continue
		}
		if species, ok := speciesSynonyms[token]; ok && intent.species == "" {
			intent.species = species
			continue
		}
		if (token == "under" || token == "below" || token == "max") && i+1 < len(tokens) {
			if naira, ok := parseNaira(strings.Trim(tokens[i+1], ",.!?")); ok {
				intent.maxPriceMinor = naira * 100
				i++
				continue
			}
		}
		if searchStopwords[token] {
			continue
		}
		intent.terms = append(intent.terms, token)
	}
	return intent
}

// parseNaira reads amounts like "160000", "160,000", "160k", or "1.5m".
func parseNaira(raw string) (int64, bool) {
	raw = strings.ReplaceAll(raw, ",", "")
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(raw, "k"):
		multiplier = 1_000
		raw = strings.TrimSuffix(raw, "k")
	case strings.HasSuffix(raw, "m"):
		multiplier = 1_000_000
		raw = strings.TrimSuffix(raw, "m")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return int64(value * float64(multiplier)), true
}

func (s *Server) smartSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeValidationError(r.Context(), w, "q is required")
		return
	}
	limit := 10
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeValidationError(r.Context(), w, "limit must be a positive integer")
			return
		}
		limit = value
	}

	intent := parseSearchIntent(query)

	type scoredListing struct {
		record listingRecord
		score  int
	}

	s.mu.Lock()
	scored := make([]scoredListing, 0, len(s.listingOrder))
	for _, id := range s.listingOrder {
		record := s.listings[id]
		if record.Status != "active" {
			continue
		}
		if intent.species != "" && record.Species != intent.species {
			continue
		}
		if intent.maxPriceMinor > 0 && record.PriceMinor > intent.maxPriceMinor {
			continue
		}
		score := 0
		for _, term := range intent.terms {
			if matchesSearch(*record, term) {
				score++
			}
			if strings.Contains(strings.ToLower(record.Location), term) {
				score++
			}
		}
		if len(intent.terms) > 0 && score == 0 {
			continue
		}
		scored = append(scored, scoredListing{record: *record, score: score})
	}
	s.mu.Unlock()

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[j].record.CreatedAt.Before(scored[i].record.CreatedAt)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	results := make([]listingView, 0, len(scored))
	for _, item := range scored {
		results = append(results, listingViewOf(item.record))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"query":          query,
		"interpretation": intent.describe(),
		"results":        results,
	})
}

func (in searchIntent) describe() string {
	parts := make([]string, 0, 3)
	if in.species != "" {
		parts = append(parts, in.species+" listings")
	} else {
		parts = append(parts, "all listings")
	}
	if len(in.terms) > 0 {
		parts = append(parts, fmt.Sprintf("matching %q", strings.Join(in.terms, " ")))
	}
	if in.maxPriceMinor > 0 {
		parts = append(parts, fmt.Sprintf("capped at NGN %d", in.maxPriceMinor/100))
	}
	return strings.Join(parts, ", ")
}

type matchView struct {
	Listing listingView `json:"listing"`
	Score   float64     `json:"score"`
	Reason  string      `json:"reason"`
}

// matchBuyRequest ranks active listings against one buy request. Scores are
// additive: species is the entry bar, breed, price, and available head count
// raise confidence.
func (s *Server) matchBuyRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")

	s.mu.Lock()
	request, ok := s.requests[id]
	if !ok {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_not_found", fmt.Sprintf("buy request %s does not exist", id), http.StatusNotFound))
		return
	}

	type scoredMatch struct {
		record listingRecord
		points int
		reason string
	}
	scored := make([]scoredMatch, 0, 4)
	for _, lid := range s.listingOrder {
		record := s.listings[lid]
		if record.Status != "active" || record.Species != request.Species {
			continue
		}

		points := 50
		reasons := []string{"species match"}
		if request.Breed != "" && record.Breed == request.Breed {
			points += 30
			reasons[0] = "breed and species match"
		}
		if request.TargetPriceMinor != nil {
			target := *request.TargetPriceMinor
			switch {
			case record.PriceMinor <= target:
				points += 15
				reasons = append(reasons, "within target price")
			default:
				over := (record.PriceMinor - target) * 100 / target
				if over <= 15 {
					points += 5
				}
				reasons = append(reasons, fmt.Sprintf("%d%% over target", over))
			}
		}
		if record.Quantity >= request.Quantity {
			points += 5
			reasons = append(reasons, fmt.Sprintf("%d %s available", record.Quantity, record.Unit))
		}

		scored = append(scored, scoredMatch{record: *record, points: points, reason: strings.Join(reasons, "; ")})
	}
	s.mu.Unlock()

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].points != scored[j].points {
			return scored[i].points > scored[j].points
		}
		return scored[j].record.CreatedAt.Before(scored[i].record.CreatedAt)
	})

	matches := make([]matchView, 0, len(scored))
	for _, item := range scored {
		matches = append(matches, matchView{
			Listing: listingViewOf(item.record),
			Score:   float64(item.points) / 100,
			Reason:  item.reason,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": matches})
}
