package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var prefixes = []string{
	"Quiet", "Rapid", "Lucky", "Solid", "Keen",
	"Noble", "Stable", "Prime", "Vivid", "Calm",
	"Sharp", "Early", "Frosty", "Amber", "Cosmic",
}

var animals = []string{
	"Otter", "Heron", "Badger", "Mantis", "Gecko",
	"Osprey", "Marten", "Puffin", "Bison", "Civet",
	"Tapir", "Kestrel", "Ibex", "Dingo", "Saiga",
}

// GenerateNickname creates a random display name for a freshly created
// account, format "Prefix_Animal_XXXX".
func GenerateNickname() (string, error) {
	pIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(prefixes))))
	if err != nil {
		return "", fmt.Errorf("failed to pick nickname prefix: %w", err)
	}

	aIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(animals))))
	if err != nil {
		return "", fmt.Errorf("failed to pick nickname animal: %w", err)
	}

	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to pick nickname suffix: %w", err)
	}

	return fmt.Sprintf("%s_%s_%04d", prefixes[pIdx.Int64()], animals[aIdx.Int64()], suffix.Int64()), nil
}
