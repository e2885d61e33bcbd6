package inbox

import "github.com/uniboxhq/unibox/internal/models"

// selection is the set of thread ids checked for the next bulk action.
// It is owned exclusively by the Coordinator and only ever touched under
// the Coordinator's lock.
type selection struct {
	ids map[string]struct{}
}

func newSelection() *selection {
	return &selection{ids: make(map[string]struct{})}
}

func (s *selection) add(id string) {
	s.ids[id] = struct{}{}
}

func (s *selection) remove(id string) {
	delete(s.ids, id)
}

func (s *selection) toggle(id string) bool {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *selection) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *selection) clear() {
	s.ids = make(map[string]struct{})
}

func (s *selection) len() int {
	return len(s.ids)
}

// retain drops ids no longer present in the collection.
func (s *selection) retain(known map[string]models.Thread) {
	for id := range s.ids {
		if _, ok := known[id]; !ok {
			delete(s.ids, id)
		}
	}
}
