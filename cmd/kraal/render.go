package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kraal-market/client/internal/domain"
)

func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "USAGE:\n    %s\n\nFLAGS:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// parseMoney reads a naira amount like "450000" or "42500.50".
func parseMoney(raw string) (domain.Money, error) {
	raw = strings.TrimSpace(raw)
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.Money{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if amount.IsNegative() {
		return domain.Money{}, fmt.Errorf("amount %q must not be negative", raw)
	}
	return domain.NewMoney(amount, domain.NGN), nil
}

// parseLineSpec reads a "listing-id:qty" pair; the quantity defaults to 1.
func parseLineSpec(raw string) (string, int, error) {
	raw = strings.TrimSpace(raw)
	id, qtyPart, found := strings.Cut(raw, ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", 0, fmt.Errorf("invalid line %q: listing id required", raw)
	}
	if !found || strings.TrimSpace(qtyPart) == "" {
		return id, 1, nil
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyPart))
	if err != nil || qty <= 0 {
		return "", 0, fmt.Errorf("invalid line %q: quantity must be a positive integer", raw)
	}
	return id, qty, nil
}

// lineSpecs collects repeatable --buy flags.
type lineSpecs []string

func (s *lineSpecs) String() string { return strings.Join(*s, ",") }

func (s *lineSpecs) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("empty line spec")
	}
	*s = append(*s, value)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatMoneyPtr(m *domain.Money) string {
	if m == nil {
		return "-"
	}
	return m.String()
}

func renderListings(w io.Writer, items []domain.Listing) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSPECIES\tBREED\tQTY\tUNIT PRICE\tLOCATION\tTITLE")
	for _, listing := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			listing.ID, listing.Species, listing.Breed, listing.Quantity,
			listing.UnitPrice, listing.Location, listing.Title)
	}
	_ = tw.Flush()
}

func renderCart(w io.Writer, cart domain.Cart) {
	if len(cart.Items) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "LISTING\tTITLE\tQTY\tUNIT PRICE\tLINE TOTAL")
	subtotal := domain.MoneyFromMinor(0, domain.NGN)
	for _, item := range cart.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			item.ListingID, item.Title, item.Quantity, item.UnitPrice, item.LineTotal())
		if total, err := subtotal.Add(item.LineTotal()); err == nil {
			subtotal = total
		}
	}
	fmt.Fprintf(tw, "\t\t\tSUBTOTAL\t%s\n", subtotal)
	_ = tw.Flush()
	if !cart.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "updated %s\n", formatTime(cart.UpdatedAt))
	}
}

func renderBuyRequests(w io.Writer, items []domain.BuyRequest) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSPECIES\tBREED\tQTY\tTARGET\tLOCATION\tSTATUS\tOFFERS\tCREATED")
	for _, request := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
			request.ID, request.Species, request.Breed, request.Quantity,
			formatMoneyPtr(request.TargetPrice), request.Location, request.Status,
			request.OfferCount, formatTime(request.CreatedAt))
	}
	_ = tw.Flush()
}

func renderOffers(w io.Writer, offers []domain.Offer) {
	if len(offers) == 0 {
		fmt.Fprintln(w, "no offers yet")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSELLER\tUNIT PRICE\tQTY\tSTATUS\tLISTING\tMESSAGE")
	for _, offer := range offers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			offer.ID, offer.SellerName, offer.UnitPrice, offer.Quantity,
			offer.Status, offer.ListingID, offer.Message)
	}
	_ = tw.Flush()
}

func renderOrder(w io.Writer, order domain.Order) {
	fmt.Fprintf(w, "order %s (%s)\n", order.ID, order.Reference)
	fmt.Fprintf(w, "  status:  %s\n", order.Status)
	fmt.Fprintf(w, "  created: %s\n", formatTime(order.CreatedAt))
	if order.LockExpiresAt != nil {
		fmt.Fprintf(w, "  price lock until: %s\n", formatTime(*order.LockExpiresAt))
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "  LISTING\tTITLE\tQTY\tUNIT PRICE")
	for _, line := range order.Lines {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\n", line.ListingID, line.Title, line.Quantity, line.UnitPrice)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "  subtotal: %s\n", order.Subtotal)
	for _, fee := range order.Fees {
		fmt.Fprintf(w, "  %-9s %s\n", fee.Label+":", fee.Amount)
	}
	fmt.Fprintf(w, "  total:    %s\n", order.Total)
}

func renderPreview(w io.Writer, preview domain.CheckoutPreview) {
	tw := newTable(w)
	fmt.Fprintln(tw, "LISTING\tTITLE\tQTY\tUNIT PRICE\tLINE TOTAL")
	for _, line := range preview.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			line.ListingID, line.Title, line.Quantity, line.UnitPrice, line.LineTotal)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "subtotal: %s\n", preview.Subtotal)
	for _, fee := range preview.Fees {
		fmt.Fprintf(w, "%s: %s\n", fee.Label, fee.Amount)
	}
	fmt.Fprintf(w, "total:    %s\n", preview.Total)
	fmt.Fprintf(w, "prices locked until %s\n", formatTime(preview.LockExpiresAt))
}

func renderMatches(w io.Writer, matches []domain.ListingMatch) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "no matching listings yet")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SCORE\tLISTING\tTITLE\tUNIT PRICE\tWHY")
	for _, match := range matches {
		fmt.Fprintf(tw, "%.2f\t%s\t%s\t%s\t%s\n",
			match.Score, match.Listing.ID, match.Listing.Title, match.Listing.UnitPrice, match.Reason)
	}
	_ = tw.Flush()
}

func renderOrders(w io.Writer, orders []domain.Order) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tHEAD\tTOTAL\tCREATED\tREFERENCE")
	for _, order := range orders {
		head := 0
		for _, line := range order.Lines {
			head += line.Quantity
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			order.ID, order.Status, head, order.Total, formatTime(order.CreatedAt), order.Reference)
	}
	_ = tw.Flush()
}
