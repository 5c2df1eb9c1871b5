package store

import (
	"math/rand"
	"time"
)

// sampleInterval is the active expiration loop's sleep period between
// sampling rounds, per spec.md §4.5.
const sampleInterval = 100 * time.Millisecond

// expirationLoop is the background worker started by New. It repeatedly
// samples and evicts expired keys, sleeping between rounds, until Close
// is called. Grounded on the teacher's gcLoop in internal/store/store.go.
func (k *Keyspace) expirationLoop() {
	defer k.wg.Done()
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-k.stop:
			return
		case <-ticker.C:
			k.DeleteExpiredSample()
		}
	}
}

// shuffle randomizes keys in place (Fisher-Yates), used to pick a random
// sample without replacement from the expiry table snapshot.
func shuffle(keys []string) {
	for i := len(keys) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		keys[i], keys[j] = keys[j], keys[i]
	}
}
