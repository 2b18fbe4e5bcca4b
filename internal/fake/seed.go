package fake

import "time"

// Credentials of the accounts SeedDemo loads.
const (
	DemoBuyerEmail  = "amina@kraal.africa"
	DemoSellerEmail = "musa@kraal.africa"
	DemoPassword    = "sannu123"
)

// SeedDemo loads a small Nigerian livestock roster: three accounts (password
// "sannu123"), eight active listings, and an open buy request that already
// carries one pending offer. IDs are fixed so demo walkthroughs can reference
// them.
func (s *Server) SeedDemo() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	users := []*userRecord{
		{
			ID:        "usr-musa",
			Email:     DemoSellerEmail,
			Phone:     "+2348031001001",
			Password:  DemoPassword,
			FirstName: "Musa",
			LastName:  "Abdullahi",
			Roles:     []string{"seller", "agent"},
			Verified:  true,
			CreatedAt: now.Add(-90 * 24 * time.Hour),
		},
		{
			ID:        "usr-amina",
			Email:     DemoBuyerEmail,
			Phone:     "+2348032002002",
			Password:  DemoPassword,
			FirstName: "Amina",
			LastName:  "Bello",
			Roles:     []string{"buyer"},
			Verified:  true,
			CreatedAt: now.Add(-60 * 24 * time.Hour),
		},
		{
			// Legacy account: roles serialise as a bare string.
			ID:         "usr-tunde",
			Email:      "tunde@kraal.africa",
			Phone:      "+2348033003003",
			Password:   DemoPassword,
			FirstName:  "Tunde",
			LastName:   "Okafor",
			Roles:      []string{"buyer"},
			ScalarRole: true,
			CreatedAt:  now.Add(-300 * 24 * time.Hour),
		},
	}
	for _, user := range users {
		s.users[user.ID] = user
		s.emailIndex[user.Email] = user.ID
	}

	listings := []*listingRecord{
		{
			ID:          "lst-white-fulani",
			Title:       "White Fulani bulls, ranch raised",
			Description: "Vaccinated, dewormed, grazed on open pasture outside Kano.",
			Species:     "cattle",
			Breed:       "white fulani",
			AgeMonths:   24,
			WeightKG:    280,
			Quantity:    3,
			PriceMinor:  45_000_000,
			Location:    "Kano",
			MediaURLs:   []string{"https://cdn.kraal.test/listing-media/seed/white-fulani.jpg"},
		},
		{
			ID:          "lst-sokoto-gudali",
			Title:       "Sokoto Gudali heifers",
			Description: "Strong beef line, ready for fattening.",
			Species:     "cattle",
			Breed:       "sokoto gudali",
			AgeMonths:   18,
			WeightKG:    230,
			Quantity:    5,
			PriceMinor:  38_000_000,
			Location:    "Sokoto",
		},
		{
			ID:          "lst-muturu-pair",
			Title:       "Muturu cow with calf",
			Description: "Trypanotolerant dwarf breed, suits humid zones.",
			Species:     "cattle",
			Breed:       "muturu",
			AgeMonths:   48,
			WeightKG:    180,
			Quantity:    2,
			PriceMinor:  52_000_000,
			Location:    "Enugu",
		},
		{
			ID:          "lst-balami-rams",
			Title:       "Balami rams for Sallah",
			Description: "Heavy white rams, horns intact, market ready.",
			Species:     "sheep",
			Breed:       "balami",
			AgeMonths:   14,
			WeightKG:    55,
			Quantity:    8,
			PriceMinor:  15_000_000,
			Location:    "Kaduna",
			MediaURLs:   []string{"https://cdn.kraal.test/listing-media/seed/balami.jpg"},
		},
		{
			ID:          "lst-yankasa-ewes",
			Title:       "Yankasa breeding ewes",
			Description: "Proven mothers, twins in last two lambings.",
			Species:     "sheep",
			Breed:       "yankasa",
			AgeMonths:   20,
			WeightKG:    38,
			Quantity:    10,
			PriceMinor:  9_000_000,
			Location:    "Jos",
		},
		{
			ID:          "lst-kano-brown",
			Title:       "Kano Brown does",
			Description: "Hardy goats, good milk line.",
			Species:     "goat",
			Breed:       "kano brown",
			AgeMonths:   12,
			WeightKG:    25,
			Quantity:    12,
			PriceMinor:  8_500_000,
			Location:    "Kano",
		},
		{
			ID:          "lst-red-sokoto",
			Title:       "Red Sokoto bucks",
			Description: "Prime skins, popular with butchers.",
			Species:     "goat",
			Breed:       "red sokoto",
			AgeMonths:   10,
			WeightKG:    22,
			Quantity:    6,
			PriceMinor:  7_800_000,
			Location:    "Zaria",
		},
		{
			ID:          "lst-broiler-batch",
			Title:       "Broiler chickens, six weeks",
			Description: "Ross 308 batch, averaging 2.4kg live weight.",
			Species:     "poultry",
			Breed:       "ross 308",
			AgeMonths:   2,
			WeightKG:    2.4,
			Quantity:    200,
			PriceMinor:  750_000,
			Location:    "Ibadan",
		},
	}
	for i, listing := range listings {
		listing.SellerID = "usr-musa"
		listing.SellerName = "Musa Abdullahi"
		listing.Currency = "NGN"
		listing.Status = "active"
		listing.Unit = "head"
		listing.ProductType = "live_animal"
		if listing.Species == "poultry" {
			listing.Unit = "bird"
		}
		// Staggered so created_at ordering is stable in list views.
		listing.CreatedAt = now.Add(-time.Duration(len(listings)-i) * 6 * time.Hour)
		listing.UpdatedAt = listing.CreatedAt
		s.listings[listing.ID] = listing
		s.listingOrder = append(s.listingOrder, listing.ID)
	}

	target := int64(14_000_000)
	request := &buyRequestRecord{
		ID:               "req-amina-rams",
		BuyerID:          "usr-amina",
		Species:          "sheep",
		Breed:            "balami",
		Quantity:         4,
		TargetPriceMinor: &target,
		Currency:         "NGN",
		Location:         "Abuja",
		Notes:            "Need delivery before Sallah week.",
		Status:           "open",
		CreatedAt:        now.Add(-36 * time.Hour),
		UpdatedAt:        now.Add(-36 * time.Hour),
	}
	s.requests[request.ID] = request
	s.requestOrder = append(s.requestOrder, request.ID)

	offer := &offerRecord{
		ID:           "off-musa-rams",
		BuyRequestID: request.ID,
		SellerID:     "usr-musa",
		SellerName:   "Musa Abdullahi",
		ListingID:    "lst-balami-rams",
		PriceMinor:   13_500_000,
		Currency:     "NGN",
		Quantity:     4,
		Message:      "Healthy rams, can deliver to Abuja before Thursday.",
		Status:       "pending",
		CreatedAt:    now.Add(-20 * time.Hour),
	}
	s.offers[offer.ID] = offer
	s.offerOrder[request.ID] = append(s.offerOrder[request.ID], offer.ID)
}
