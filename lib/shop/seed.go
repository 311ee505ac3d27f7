package shop

import (
	"io"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/lib/user"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout read by Seed:
//
//	products:
//	  - title: Shirt
//	    price: 19.99
//	    category: Clothing
//	    inStock: true
//	users:
//	  - username: admin
//	    email: admin@example.com
//	    password: change-me-now
//	    role: admin
type SeedFile struct {
	Products []model.Product      `yaml:"products"`
	Users    []user.RegisterInput `yaml:"users"`
}

// SeedResult counts what Seed did
type SeedResult struct {
	Products int `json:"products"`
	Users    int `json:"users"`
	Skipped  int `json:"skipped"`
}

// Seed imports products and users from YAML. Products with an id that
// already exists and users whose name is taken are skipped.
func (sh *Shop) Seed(r io.Reader) (SeedResult, error) {
	var file SeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return SeedResult{}, &store.Error{Code: store.ErrCValidation, Op: "seed", Msg: "can not parse seed file", Err: err}
	}

	var res SeedResult
	for _, p := range file.Products {
		if p.ID != "" {
			if _, err := sh.Store.FindByID(store.CollectionProducts, p.ID); err == nil {
				res.Skipped++
				continue
			} else if !store.IsNotFound(err) {
				return res, err
			}
		}
		doc, err := store.Encode(p)
		if err != nil {
			return res, err
		}
		if p.ID == "" {
			delete(doc, store.FieldID)
		}
		if _, err := sh.Store.AppendDocument(store.CollectionProducts, doc); err != nil {
			return res, err
		}
		res.Products++
	}

	for _, in := range file.Users {
		if _, err := sh.Users.Register(in); store.IsCode(err, store.ErrCUserExists) {
			res.Skipped++
			continue
		} else if err != nil {
			return res, err
		}
		res.Users++
	}

	Logger.Infof("seeded %d products and %d users (%d skipped)", res.Products, res.Users, res.Skipped)
	return res, nil
}
