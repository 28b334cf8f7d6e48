package priority

// Snapshot is a read-only copy of the registry state. Mutating it has no
// effect on the registry.
type Snapshot struct {
	Metadata Metadata `json:"metadata"`
	Current  Document `json:"priorities"`
	Default  Document `json:"default"`
}

// Resolution locates a class inside the current configuration.
type Resolution struct {
	Category Category
	Entry    Entry
	// Index is the declaration index across both categories, critical first.
	Index int
}

// Resolve looks up name in the current configuration.
func (s Snapshot) Resolve(name string) (Resolution, bool) {
	offset := 0
	for _, cat := range Categories {
		classes := s.Current.Classes(cat)
		if i := classes.Index(name); i >= 0 {
			return Resolution{Category: cat, Entry: classes[i], Index: offset + i}, true
		}
		offset += len(classes)
	}
	return Resolution{}, false
}

// Size returns the number of classes in the current configuration.
func (s Snapshot) Size() int {
	return len(s.Current.Critical) + len(s.Current.NonCritical)
}

// Rationale returns the rationale text per category and class.
func (s Snapshot) Rationale() map[Category]map[string]string {
	out := make(map[Category]map[string]string, len(Categories))
	for _, cat := range Categories {
		m := make(map[string]string)
		for _, e := range s.Current.Classes(cat) {
			m[e.Name] = e.Rationale
		}
		out[cat] = m
	}
	return out
}
