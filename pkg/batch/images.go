package batch

import "context"

// ListSupportedImages returns the VM images the account can provision.
func (c *Client) ListSupportedImages(ctx context.Context) ([]SupportedImage, error) {
	return listAll[SupportedImage](ctx, c, "supportedimages")
}
