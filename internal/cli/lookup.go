package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/postal"
	"github.com/dalemusser/stratamembers/internal/app/system/redisclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLookupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <postal-code>",
		Short: "Resolve a postal code to its prefecture and municipality",
		Long: `lookup queries the postal code service the member forms use. Results
are cached in Redis when redis_url is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runLookup(cmd.Context(), args[0])
		},
	}
}

func (e *env) runLookup(ctx context.Context, code string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	baseURL := e.v.GetString("postal_api_base_url")
	if baseURL == "" {
		return errors.New("postal lookup is disabled (postal_api_base_url is empty)")
	}

	var opts []postal.Option
	rc, err := redisclient.New(ctx, e.v.GetString("redis_url"))
	switch {
	case err != nil:
		e.logger.Warn("redis unavailable, lookup will not be cached", zap.Error(err))
	case rc != nil:
		defer rc.Close()
		opts = append(opts, postal.WithCache(postal.NewRedisCache(rc, e.v.GetDuration("postal_cache_ttl"))))
	}

	client := postal.New(baseURL, e.v.GetDuration("postal_timeout"), e.logger, opts...)
	res, err := client.Lookup(ctx, code)
	switch {
	case errors.Is(err, postal.ErrInvalidCode):
		return fmt.Errorf("%q is not a 7-digit postal code", code)
	case errors.Is(err, postal.ErrNotFound):
		return fmt.Errorf("no address found for %s", code)
	case err != nil:
		return err
	}

	split := res.Split(address.NewSplitter(address.WithLooseFallback(e.v.GetBool("address_loose_fallback"))))
	fmt.Fprintf(e.out, "〒%s-%s\n", res.PostalCode[:3], res.PostalCode[3:])
	fmt.Fprintf(e.out, "prefecture:     %s\n", res.Prefecture)
	fmt.Fprintf(e.out, "address:        %s\n", split.City)
	if split.Street != "" {
		fmt.Fprintf(e.out, "street_address: %s\n", split.Street)
	}
	return nil
}
