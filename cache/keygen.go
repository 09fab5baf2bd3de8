package cache

import "fmt"

// keyNamespace prefixes every key so count entries stay recognizable when
// the store is shared with other data.
const keyNamespace = "sharecounts"

// KeyFor builds the cache key for a network/url pair. Both parts are quoted,
// so a url containing spaces or quotes cannot alias a different pair.
func KeyFor(network, url string) string {
	return fmt.Sprintf("%s %q %q", keyNamespace, network, url)
}
