package cli

import (
	"context"
	"database/sql"
	"fmt"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/store"
)

// partyView is how clients and suppliers are printed.
type partyView struct {
	Nip           string `yaml:"nip"`
	CompanyName   string `yaml:"company_name"`
	AddressP1     string `yaml:"address_p1"`
	AddressP2     string `yaml:"address_p2"`
	Alias         string `yaml:"alias,omitempty"`
	Email         string `yaml:"email,omitempty"`
	Phone         string `yaml:"phone,omitempty"`
	ContactPerson string `yaml:"contact_person,omitempty"`
	Default       bool   `yaml:"default,omitempty"`
}

// ClientCmd returns the client command.
func ClientCmd(a *app) *Command {
	flags := flag.NewFlagSet("client", flag.ContinueOnError)
	nip := flags.String("nip", "", "Tax `id` (10 digits)")
	name := flags.String("name", "", "Company `name`")
	addr1 := flags.String("address1", "", "First address `line`")
	addr2 := flags.String("address2", "", "Second address `line`")
	alias := flags.String("alias", "", "Short `alias` used in file names")
	email := flags.String("email", "", "Contact `email`")
	phone := flags.String("phone", "", "Contact `phone`")
	contact := flags.String("contact", "", "Contact `person`")

	return &Command{
		Flags: flags,
		Usage: "client <add|show> [flags]",
		Short: "Register or look up a client",
		Long: "client add --nip N --name X --alias A [--address1 ...] registers or updates a client.\n" +
			"client show <nip|alias> prints one client.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return usageErr("missing action (add or show)")
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			switch args[0] {
			case "add":
				err = requireArgs(args[1:])
				if err != nil {
					return err
				}

				digits := docs.NipDigits(*nip)
				if !docs.IsNip(digits) {
					return usageErr("invalid --nip %q", *nip)
				}

				if *name == "" {
					return usageErr("--name is required")
				}

				err = layout.ValidateAlias(*alias)
				if err != nil {
					return err
				}

				err = s.UpsertClient(ctx, store.Client{
					Nip:           digits,
					CompanyName:   *name,
					AddressP1:     *addr1,
					AddressP2:     *addr2,
					Alias:         *alias,
					Email:         nullString(*email),
					Phone:         nullString(*phone),
					ContactPerson: nullString(*contact),
				})
				if err != nil {
					return err
				}

				o.Println("client", digits, *alias)

				return nil
			case "show":
				err = requireArgs(args[1:], "nip|alias")
				if err != nil {
					return err
				}

				key := args[1]

				var c store.Client
				if docs.IsNip(docs.NipDigits(key)) {
					c, err = s.ClientByNip(ctx, docs.NipDigits(key))
				} else {
					c, err = s.ClientByAlias(ctx, key)
				}

				if err != nil {
					return err
				}

				return printYAML(o, partyView{
					Nip:           c.Nip,
					CompanyName:   c.CompanyName,
					AddressP1:     c.AddressP1,
					AddressP2:     c.AddressP2,
					Alias:         c.Alias,
					Email:         c.Email.String,
					Phone:         c.Phone.String,
					ContactPerson: c.ContactPerson.String,
				})
			default:
				return usageErr("unknown action %q", args[0])
			}
		},
	}
}

// SupplierCmd returns the supplier command.
func SupplierCmd(a *app) *Command {
	flags := flag.NewFlagSet("supplier", flag.ContinueOnError)
	nip := flags.String("nip", "", "Tax `id` (10 digits)")
	name := flags.String("name", "", "Company `name`")
	addr1 := flags.String("address1", "", "First address `line`")
	addr2 := flags.String("address2", "", "Second address `line`")
	makeDefault := flags.Bool("default", false, "Also make it the default supplier")

	return &Command{
		Flags: flags,
		Usage: "supplier <add|default|show> [flags]",
		Short: "Manage issuing companies",
		Long: "supplier add --nip N --name X [--default] registers or updates a supplier.\n" +
			"supplier default <nip> makes it the only default.\n" +
			"supplier show prints the default supplier.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return usageErr("missing action (add, default or show)")
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			switch args[0] {
			case "add":
				digits := docs.NipDigits(*nip)
				if !docs.IsNip(digits) {
					return usageErr("invalid --nip %q", *nip)
				}

				if *name == "" {
					return usageErr("--name is required")
				}

				err = s.UpsertSupplier(ctx, store.Supplier{
					Nip:         digits,
					CompanyName: *name,
					AddressP1:   *addr1,
					AddressP2:   *addr2,
				})
				if err != nil {
					return err
				}

				if *makeDefault {
					err = s.SetDefaultSupplier(ctx, digits)
					if err != nil {
						return err
					}
				}

				o.Println("supplier", digits)

				return nil
			case "default":
				err = requireArgs(args[1:], "nip")
				if err != nil {
					return err
				}

				err = s.SetDefaultSupplier(ctx, docs.NipDigits(args[1]))
				if err != nil {
					return err
				}

				o.Println("default supplier", docs.NipDigits(args[1]))

				return nil
			case "show":
				sup, err := s.DefaultSupplier(ctx)
				if err != nil {
					return err
				}

				return printYAML(o, partyView{
					Nip:         sup.Nip,
					CompanyName: sup.CompanyName,
					AddressP1:   sup.AddressP1,
					AddressP2:   sup.AddressP2,
					Default:     sup.IsDefault,
				})
			default:
				return usageErr("unknown action %q", args[0])
			}
		},
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func printYAML(o *IO, v any) error {
	enc := yaml.NewEncoder(o.Out())
	enc.SetIndent(2)

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("print: %w", err)
	}

	return enc.Close()
}
