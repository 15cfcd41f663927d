package domain

// Part, Vendor and StoragePlace are owned by the registry service. The ledger
// only resolves them by identifier and denormalizes the names it needs for
// search.

type Part struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Manufacturer string `json:"manufacturer"`
	Datasheet    string `json:"datasheet"`
}

type Vendor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type StoragePlace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Photo       string `json:"photo"`
}
