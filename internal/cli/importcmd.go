package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/seeding"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newImportCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <members.yaml>",
		Short: "Import members from a YAML file",
		Long: `import reads a YAML document with a top-level "members" list and
inserts every entry. Addresses are normalized on the way in: full-width
characters are converted and an embedded street number is split out when the
entry has no street address of its own. Use "-" to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runImport(cmd.Context(), args[0], cmd.InOrStdin())
		},
	}
	return cmd
}

func (e *env) runImport(ctx context.Context, path string, stdin io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	inputs, err := seeding.ParseMembers(r)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(e.out, "no members to import")
		return nil
	}
	splitter := address.NewSplitter(address.WithLooseFallback(e.v.GetBool("address_loose_fallback")))
	for i := range inputs {
		normalizeImport(&inputs[i], splitter)
	}

	db, closeDB, err := e.openDB(ctx, e.v.GetString("mongo_uri"), e.v.GetString("mongo_database"))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := closeDB(context.Background()); err != nil {
			e.logger.Warn("disconnect failed", zap.Error(err))
		}
	}()

	inserted, rejected, err := memberstore.New(db).InsertMany(ctx, inputs)
	fmt.Fprintf(e.out, "imported %d of %d members\n", inserted, len(inputs))

	idx := make([]int, 0, len(rejected))
	for i := range rejected {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		fmt.Fprintf(e.out, "  skipped #%d %s: %v\n", i+1, inputs[i].Name, rejected[i])
	}

	switch {
	case errors.Is(err, memberstore.ErrDuplicateNumber):
		return fmt.Errorf("some members were not imported: membership number already registered")
	case err != nil:
		return err
	case len(rejected) > 0:
		return fmt.Errorf("%d members were rejected", len(rejected))
	}
	e.logger.Info("members imported", zap.Int("count", inserted), zap.String("source", path))
	return nil
}

// normalizeImport applies the same repairs the address-fix batch makes.
func normalizeImport(in *memberstore.CreateInput, s *address.Splitter) {
	in.Address = address.ToHalfWidth(in.Address)
	in.StreetAddress = address.ToHalfWidth(in.StreetAddress)
	if in.StreetAddress == "" {
		if res := s.Split(in.Address); res.Outcome == address.Split {
			in.Address = res.City
			in.StreetAddress = res.Street
		}
		return
	}
	in.Address = address.TrimStreetFromCity(in.Address, in.StreetAddress)
}
