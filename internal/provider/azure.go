// internal/provider/azure.go
//
// Azure Blob storage driver.
//
// Context
// -------
// The classified string is handed to the SDK's own connection-string
// parser after stripping the one key the SDK does not know: Container,
// which selects the blob container for this tenant (default "assets").
package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

const defaultContainer = "assets"

type azureStorage struct {
	client    *azblob.Client
	container string
}

func newAzureStorage(cs ConnString) (*azureStorage, error) {
	client, err := azblob.NewClientFromConnectionString(stripContainerKey(cs.Raw), nil)
	if err != nil {
		return nil, fmt.Errorf("azure driver: %w", err)
	}

	cont := cs.Field("container")
	if cont == "" {
		cont = defaultContainer
	}
	return &azureStorage{client: client, container: cont}, nil
}

// stripContainerKey removes the Container=... segment so the SDK parser
// only sees keys it understands.
func stripContainerKey(raw string) string {
	segs := strings.Split(raw, ";")
	kept := segs[:0]
	for _, seg := range segs {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(seg)), "container=") {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, ";")
}

func (a *azureStorage) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	opts := &azblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := a.client.UploadStream(ctx, a.container, key, body, opts); err != nil {
		return fmt.Errorf("azure put %q: %w", key, err)
	}
	return nil
}

func (a *azureStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		return nil, fmt.Errorf("azure get %q: %w", key, err)
	}
	return resp.Body, nil
}

func (a *azureStorage) Delete(ctx context.Context, key string) error {
	if _, err := a.client.DeleteBlob(ctx, a.container, key, nil); err != nil {
		return fmt.Errorf("azure delete %q: %w", key, err)
	}
	return nil
}

func (a *azureStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azure list %q: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

func (a *azureStorage) Exists(ctx context.Context, key string) (bool, error) {
	bc := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(key)
	if _, err := bc.GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("azure head %q: %w", key, err)
	}
	return true, nil
}
