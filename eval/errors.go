package eval

import "fmt"

func errInvalidVariationIndex(flagKey string, index int) error {
	return fmt.Errorf("invalid variation index %d in flag %q", index, flagKey)
}

func errNoVariationOrRollout(flagKey string) error {
	return fmt.Errorf("variation/rollout object with no variation or rollout in flag %q", flagKey)
}

func errCyclicPrerequisite(key string) error {
	return fmt.Errorf("cycle detected in prerequisites at flag %q", key)
}
