package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/shop"
)

func (a *app) inventoryCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "inventory", Short: "Parts stock and stock movements"}

	var filter shop.InventoryFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List inventory items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.shop.ListInventoryItems(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(a.out, items)
		},
	}
	addListFlags(list.Flags(), &filter.ListOptions)
	list.Flags().StringVar(&filter.Query, "query", "", "match on the name")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show an inventory item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			item, err := a.shop.GetInventoryItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(a.out, item)
		},
	}

	var (
		in                  shop.InventoryItemInput
		storeID, sku, unit  string
		cost, price, onHand string
	)
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Add an inventory item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := optionalStoreID(storeID)
			if err != nil {
				return err
			}
			if id != nil {
				in.StoreID = *id
			}
			in.Name = args[0]
			if in.CostPrice, err = parseQty("cost", cost); err != nil {
				return err
			}
			if in.SalePrice, err = parseQty("price", price); err != nil {
				return err
			}
			if in.QtyOnHand, err = parseQty("on-hand", onHand); err != nil {
				return err
			}
			if cmd.Flags().Changed("sku") {
				in.SKU = &sku
			}
			if cmd.Flags().Changed("unit") {
				in.Unit = &unit
			}
			item, err := a.shop.CreateInventoryItem(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(a.out, item)
		},
	}
	create.Flags().StringVar(&storeID, "store-id", "", "store id")
	create.Flags().StringVar(&sku, "sku", "", "stock keeping unit")
	create.Flags().StringVar(&unit, "unit", "", "unit label")
	create.Flags().StringVar(&cost, "cost", "0", "cost price")
	create.Flags().StringVar(&price, "price", "0", "sale price")
	create.Flags().StringVar(&onHand, "on-hand", "0", "opening quantity")
	_ = create.MarkFlagRequired("store-id")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an inventory item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.shop.DeleteInventoryItem(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, "deleted")
			return err
		},
	}

	cmd.AddCommand(list, get, create, del, a.movesCommand())
	return cmd
}

func (a *app) movesCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "moves", Short: "Stock receipts, issues and adjustments"}

	var (
		filter shop.StockMoveFilter
		itemID string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List stock movements, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if itemID != "" {
				id, err := parseID(itemID)
				if err != nil {
					return err
				}
				filter.ItemID = &id
			}
			moves, err := a.shop.ListStockMoves(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(a.out, moves)
		},
	}
	addListFlags(list.Flags(), &filter.ListOptions)
	list.Flags().StringVar(&itemID, "item-id", "", "only movements of this item")

	var storeID, qty, unitCost, note string
	create := &cobra.Command{
		Use:   "create in|out|adjust ITEM_ID",
		Short: "Record a stock movement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := parseID(args[1])
			if err != nil {
				return err
			}
			store, err := parseID(storeID)
			if err != nil {
				return err
			}
			in := shop.StockMoveInput{StoreID: store, ItemID: item, MoveType: shop.StockMoveType(args[0])}
			if in.Qty, err = parseQty("qty", qty); err != nil {
				return err
			}
			if cmd.Flags().Changed("unit-cost") {
				c, err := decimal.NewFromString(unitCost)
				if err != nil {
					return fmt.Errorf("invalid --unit-cost %q: %w", unitCost, err)
				}
				in.UnitCost = &c
			}
			if cmd.Flags().Changed("note") {
				in.Note = &note
			}
			move, err := a.shop.CreateStockMove(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(a.out, move)
		},
	}
	create.Flags().StringVar(&storeID, "store-id", "", "store id")
	create.Flags().StringVar(&qty, "qty", "", "quantity moved")
	create.Flags().StringVar(&unitCost, "unit-cost", "", "cost per unit (default the item's cost price)")
	create.Flags().StringVar(&note, "note", "", "free text")
	_ = create.MarkFlagRequired("store-id")
	_ = create.MarkFlagRequired("qty")

	cmd.AddCommand(list, create)
	return cmd
}

func (a *app) storesCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "stores", Short: "Store profiles printed on documents"}

	var listOpts shop.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List stores visible to the caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := a.shop.ListStores(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			return printJSON(a.out, stores)
		},
	}
	addListFlags(list.Flags(), &listOpts)

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := a.shop.GetStore(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(a.out, st)
		},
	}

	var (
		name                      string
		tel, email, invoiceNumber string
	)
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Change store details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var in shop.StoreUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("tel") {
				in.Tel = &tel
			}
			if flags.Changed("email") {
				in.Email = &email
			}
			if flags.Changed("invoice-number") {
				in.InvoiceNumber = &invoiceNumber
			}
			st, err := a.shop.UpdateStore(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return printJSON(a.out, st)
		},
	}
	update.Flags().StringVar(&name, "name", "", "store name")
	update.Flags().StringVar(&tel, "tel", "", "phone number")
	update.Flags().StringVar(&email, "email", "", "contact email")
	update.Flags().StringVar(&invoiceNumber, "invoice-number", "", "registered invoice issuer number")

	cmd.AddCommand(list, get, update)
	return cmd
}

func (a *app) valuationCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "valuation", Short: "Purchase price estimates"}

	settings := &cobra.Command{
		Use:   "settings",
		Short: "Show the store's valuation settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := a.shop.ValuationSettings(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(a.out, vs)
		},
	}

	var (
		buyCap, minRate   float64
		roundUnit, minYen int64
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change valuation settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in shop.ValuationSettingsUpdate
			flags := cmd.Flags()
			if flags.Changed("buy-cap-pct") {
				in.BuyCapPct = &buyCap
			}
			if flags.Changed("min-profit-rate") {
				in.MinProfitRate = &minRate
			}
			if flags.Changed("round-unit") {
				in.RoundUnitYen = &roundUnit
			}
			if flags.Changed("min-profit") {
				in.MinProfitYen = &minYen
			}
			vs, err := a.shop.UpdateValuationSettings(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(a.out, vs)
		},
	}
	set.Flags().Float64Var(&buyCap, "buy-cap-pct", 0, "purchase cap as a fraction of the market price")
	set.Flags().Float64Var(&minRate, "min-profit-rate", 0, "minimum profit as a fraction of the sale price")
	set.Flags().Int64Var(&roundUnit, "round-unit", 0, "rounding unit in yen")
	set.Flags().Int64Var(&minYen, "min-profit", 0, "minimum profit in yen")

	var req shop.ValuationRequest
	calculate := &cobra.Command{
		Use:   "calculate MAKE MODEL GRADE",
		Short: "Estimate prices for a vehicle",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Make, req.Model, req.Grade = args[0], args[1], args[2]
			v, err := a.shop.CalculateValuation(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(a.out, v)
		},
	}
	calculate.Flags().IntVar(&req.Year, "year", 0, "model year")
	calculate.Flags().IntVar(&req.Mileage, "mileage", 0, "odometer in km")
	_ = calculate.MarkFlagRequired("year")

	cmd.AddCommand(settings, set, calculate)
	return cmd
}
