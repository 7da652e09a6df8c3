package tenancy

// SetSuffixSource replaces the random slug suffix generator.
func (s *Service) SetSuffixSource(intn func(int) int) {
	s.intn = intn
}

// SetBeforeLink installs a hook that runs after the tenant row is created
// and before the user is linked to it.
func (s *Service) SetBeforeLink(hook func()) {
	s.beforeLink = hook
}
