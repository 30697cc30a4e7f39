package router

import (
	"fmt"
	"math"
	"sort"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

// Cluster is a group of listings sharing one layout signature. Only the
// representative is sent in full; members are fetched on demand.
type Cluster struct {
	Signature      string               `json:"signature"`
	Rooms          int                  `json:"rooms"`
	AreaFrom       float64              `json:"area_from"`
	AreaTo         float64              `json:"area_to"`
	BalconyType    string               `json:"balcony_type"`
	BathroomType   string               `json:"bathroom_type"`
	Size           int                  `json:"size"`
	PriceMin       float64              `json:"price_min"`
	PriceMax       float64              `json:"price_max"`
	Representative domain.ScoredListing `json:"representative"`
	ListingIDs     []string             `json:"listing_ids"`
}

// Signature is the layout key: room count, area bucket, balcony type and
// bathroom layout.
func Signature(l domain.Listing, bucketSqm float64) string {
	from, _ := areaBucket(l.TotalArea, bucketSqm)
	return fmt.Sprintf("r%d-a%d-%s-%s", l.Rooms, int(from),
		orNone(string(l.BalconyType)), orUnknown(string(l.BathroomType)))
}

func areaBucket(area, size float64) (float64, float64) {
	from := math.Floor(area/size) * size
	return from, from + size
}

func orNone(s string) string {
	if s == "" {
		return string(domain.BalconyNone)
	}
	return s
}

// clusterRanked groups an already ranked slice. The first member seen for
// a signature is its best-scoring listing and becomes the representative.
func clusterRanked(ranked []domain.ScoredListing, bucketSqm float64) []Cluster {
	index := make(map[string]int)
	var out []Cluster
	for _, s := range ranked {
		sig := Signature(s.Listing, bucketSqm)
		i, ok := index[sig]
		if !ok {
			from, to := areaBucket(s.Listing.TotalArea, bucketSqm)
			index[sig] = len(out)
			out = append(out, Cluster{
				Signature:      sig,
				Rooms:          s.Listing.Rooms,
				AreaFrom:       from,
				AreaTo:         to,
				BalconyType:    orNone(string(s.Listing.BalconyType)),
				BathroomType:   orUnknown(string(s.Listing.BathroomType)),
				PriceMin:       s.Listing.Price,
				PriceMax:       s.Listing.Price,
				Representative: s,
			})
			i = len(out) - 1
		}
		c := &out[i]
		c.Size++
		c.PriceMin = math.Min(c.PriceMin, s.Listing.Price)
		c.PriceMax = math.Max(c.PriceMax, s.Listing.Price)
		c.ListingIDs = append(c.ListingIDs, s.Listing.ID)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Representative, out[j].Representative
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return out[i].Signature < out[j].Signature
	})
	return out
}
