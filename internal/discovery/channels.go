package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// channelAliases maps the legacy jikkyo channel ids to the native ids used
// by the current service. jk0 is not a real broadcast channel but is kept
// for debugging.
var channelAliases = map[string]string{
	"jk0":   "kl1",
	"jk1":   "kl11",
	"jk2":   "kl12",
	"jk4":   "kl14",
	"jk5":   "kl15",
	"jk6":   "kl16",
	"jk7":   "kl17",
	"jk8":   "kl18",
	"jk9":   "kl19",
	"jk101": "kl13",
	"jk211": "kl20",
}

// ResolveChannel maps a jk alias to its native id. Native ids (kl*) pass
// through unchanged.
func ResolveChannel(id string) (string, error) {
	if native, ok := channelAliases[id]; ok {
		return native, nil
	}
	if strings.HasPrefix(id, "kl") {
		return id, nil
	}
	return "", fmt.Errorf("unknown channel %q (valid aliases: %s)", id, strings.Join(KnownChannels(), ", "))
}

// KnownChannels lists the jk aliases in stable order.
func KnownChannels() []string {
	out := make([]string, 0, len(channelAliases))
	for id := range channelAliases {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
