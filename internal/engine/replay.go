package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/roach88/harberger/internal/ledger"
	"github.com/roach88/harberger/internal/settlement"
)

// # Replay
//
// The operations journal is the source of truth. Every committed request
// is one row, appended in the same transaction as the state it produced,
// ordered by seq. Applying the rows in seq order to empty state with the
// pure settlement functions must reproduce both:
//
//   - the result recorded on each row, byte for byte as JSON
//   - the persisted collections and books
//
// Settlement functions read no clock and no randomness, so the only input
// is the journal. Failed requests never reach the journal.

// ReplayReport summarises a VerifyReplay run.
type ReplayReport struct {
	Operations  int      `json:"operations"`
	Collections int      `json:"collections"`
	Books       int      `json:"books"`
	Divergences []string `json:"divergences"`
}

// OK reports whether replay reproduced the persisted state exactly.
func (r ReplayReport) OK() bool {
	return len(r.Divergences) == 0
}

type replayState struct {
	collections map[string]ledger.CollectionParameters
	books       map[ledger.AssetKey]*ledger.Book
}

// VerifyReplay rebuilds all state from the journal and compares it with
// the store. Divergences are reported, not repaired. The returned error is
// reserved for failures to read the store.
func (e *Engine) VerifyReplay(ctx context.Context) (ReplayReport, error) {
	records, err := e.store.ReadOperations(ctx)
	if err != nil {
		return ReplayReport{}, err
	}

	st := &replayState{
		collections: make(map[string]ledger.CollectionParameters),
		books:       make(map[ledger.AssetKey]*ledger.Book),
	}
	report := ReplayReport{Operations: len(records), Divergences: []string{}}
	diverge := func(format string, args ...any) {
		report.Divergences = append(report.Divergences, fmt.Sprintf(format, args...))
	}

	for _, rec := range records {
		if rec.RequestHash != rec.Operation.MustHash() {
			diverge("seq %d: request hash mismatch", rec.Seq)
		}
		result, err := st.apply(rec.Operation)
		if err != nil {
			diverge("seq %d: %s failed on replay: %v", rec.Seq, rec.Kind, err)
			continue
		}
		got, err := json.Marshal(result)
		if err != nil {
			return report, fmt.Errorf("marshal replay result: %w", err)
		}
		if string(got) != rec.Result {
			diverge("seq %d: %s result differs: journal %s, replay %s", rec.Seq, rec.Kind, rec.Result, got)
		}
	}

	persisted, err := e.store.ListCollections(ctx)
	if err != nil {
		return report, err
	}
	report.Collections = len(persisted)
	if len(persisted) != len(st.collections) {
		diverge("collections: persisted %d, replayed %d", len(persisted), len(st.collections))
	}

	seen := make(map[ledger.AssetKey]bool)
	for _, p := range persisted {
		if want, ok := st.collections[p.CollectionID]; !ok {
			diverge("collection %s: not in journal", p.CollectionID)
		} else if want != p {
			diverge("collection %s: persisted %+v, replayed %+v", p.CollectionID, p, want)
		}

		books, err := e.store.Books(ctx, p.CollectionID)
		if err != nil {
			return report, err
		}
		report.Books += len(books)
		for _, b := range books {
			key := b.Ledger.Key()
			seen[key] = true
			want, ok := st.books[key]
			if !ok {
				diverge("book %s: not in journal", key)
				continue
			}
			if !reflect.DeepEqual(want, b) {
				diverge("book %s: persisted %+v, replayed %+v", key, *b, *want)
			}
		}
	}

	var missing []string
	for key := range st.books {
		if !seen[key] {
			missing = append(missing, key.String())
		}
	}
	sort.Strings(missing)
	for _, key := range missing {
		diverge("book %s: replayed but not persisted", key)
	}

	return report, nil
}

// apply replays one journal row. It mirrors the engine operations without
// locks or storage.
func (st *replayState) apply(op ledger.Operation) (any, error) {
	key := op.Key()

	if op.Kind == ledger.OpRegisterCollection {
		if _, ok := st.collections[op.CollectionID]; ok {
			return nil, ledger.NewCollectionExistsError(op.CollectionID)
		}
		p := ledger.CollectionParameters{
			CollectionID:        op.CollectionID,
			AdminAuthorityID:    op.ActorID,
			DenominationAssetID: op.Denomination,
			RatePerTimeUnit:     op.Amount,
		}
		st.collections[op.CollectionID] = p
		return RegisterResult{Collection: p}, nil
	}

	p, ok := st.collections[op.CollectionID]
	if !ok {
		return nil, ledger.NewCollectionNotFoundError(op.CollectionID)
	}

	switch op.Kind {
	case ledger.OpUpdateRate:
		if op.ActorID != p.AdminAuthorityID {
			return nil, ledger.NewUnauthorizedError(op.CollectionID)
		}
		res := UpdateRateResult{
			CollectionID: op.CollectionID,
			PreviousRate: p.RatePerTimeUnit,
			Rate:         op.Amount,
			Settlements:  []AssetSettlement{},
		}
		for _, b := range st.collectionBooks(op.CollectionID) {
			sr, err := settlement.Settle(b, p.RatePerTimeUnit, op.At)
			if err != nil {
				return nil, err
			}
			res.Settlements = append(res.Settlements, AssetSettlement{AssetID: b.Ledger.AssetID, Settlement: sr})
		}
		p.RatePerTimeUnit = op.Amount
		st.collections[op.CollectionID] = p
		return res, nil

	case ledger.OpDeposit:
		b, ok := st.books[key]
		if !ok {
			b = ledger.NewBook(key.CollectionID, key.AssetID, op.ActorID, op.At)
		}
		res, err := settlement.Deposit(b, p.RatePerTimeUnit, op.ActorID, op.Amount, op.At)
		if err != nil {
			return nil, err
		}
		st.books[key] = b
		return res, nil
	}

	b, ok := st.books[key]
	if !ok {
		return nil, ledger.NewAssetNotFoundError(key)
	}
	switch op.Kind {
	case ledger.OpWithdraw:
		return settlement.Withdraw(b, p.RatePerTimeUnit, op.ActorID, op.Amount, op.At)
	case ledger.OpSettle:
		return settlement.Settle(b, p.RatePerTimeUnit, op.At)
	case ledger.OpClaimForeclosure:
		return settlement.ClaimForeclosure(b, p.RatePerTimeUnit, op.ActorID, op.Amount, op.At)
	}
	return nil, fmt.Errorf("unknown operation kind %q", op.Kind)
}

// collectionBooks returns a collection's books ordered by asset ID, the
// order UpdateRate settles them in.
func (st *replayState) collectionBooks(collectionID string) []*ledger.Book {
	var books []*ledger.Book
	for key, b := range st.books {
		if key.CollectionID == collectionID {
			books = append(books, b)
		}
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].Ledger.AssetID < books[j].Ledger.AssetID
	})
	return books
}
