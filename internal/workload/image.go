package workload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

// ErrNoImage is returned when no verified image matches the request.
var ErrNoImage = errors.New("no matching verified image")

// ImageLister lists the images a Batch account can provision.
type ImageLister interface {
	ListSupportedImages(ctx context.Context) ([]batch.SupportedImage, error)
}

// SelectImage picks the verified image for publisher and offer whose SKU
// starts with skuPrefix, preferring the highest SKU. It returns the image
// reference and the node agent SKU id the pool must use with it.
func SelectImage(ctx context.Context, lister ImageLister, publisher, offer, skuPrefix string) (batch.ImageReference, string, error) {
	images, err := lister.ListSupportedImages(ctx)
	if err != nil {
		return batch.ImageReference{}, "", fmt.Errorf("list supported images: %w", err)
	}

	var matches []batch.SupportedImage
	for _, img := range images {
		ref := img.ImageReference
		if img.VerificationType != batch.VerificationVerified {
			continue
		}
		if !strings.EqualFold(ref.Publisher, publisher) || !strings.EqualFold(ref.Offer, offer) {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(ref.SKU), strings.ToLower(skuPrefix)) {
			continue
		}
		matches = append(matches, img)
	}
	if len(matches) == 0 {
		return batch.ImageReference{}, "", fmt.Errorf("%w: %s/%s/%s*", ErrNoImage, publisher, offer, skuPrefix)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ImageReference.SKU > matches[j].ImageReference.SKU
	})
	best := matches[0]
	return best.ImageReference, best.NodeAgentSKUID, nil
}
