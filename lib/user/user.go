package user

import (
	"errors"
	"strings"
	"sync"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/crypto/bcrypt"
)

var Logger = logger.GetLogger("user")

const minPasswordLength = 8

// RegisterInput holds the data of a new account
type RegisterInput struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
	Role     string `json:"role,omitempty" yaml:"role"` // "" = model.RoleUser
}

// Service registers and authenticates users
type Service struct {
	store store.IStore
	cost  int

	// serializes the uniqueness check with the insert
	registerMu sync.Mutex
}

// NewService creates a user service. cost is the bcrypt cost, 0 uses bcrypt.DefaultCost.
func NewService(s store.IStore, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{store: s, cost: cost}
}

// Register creates a new account. Usernames are unique, case insensitive.
func (s *Service) Register(in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return model.User{}, store.NewError(store.ErrCValidation, "user.register", "username, email and password are required")
	}
	if !strings.Contains(in.Email, "@") {
		return model.User{}, store.NewError(store.ErrCValidation, "user.register", "email is invalid")
	}
	if len(in.Password) < minPasswordLength {
		return model.User{}, store.Errorf(store.ErrCValidation, "user.register", "password must have at least %d characters", minPasswordLength)
	}
	switch in.Role {
	case "":
		in.Role = model.RoleUser
	case model.RoleUser, model.RoleAdmin:
	default:
		return model.User{}, store.Errorf(store.ErrCValidation, "user.register", "unknown role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return model.User{}, &store.Error{Code: store.ErrCValidation, Op: "user.register", Msg: "password can not be hashed", Err: err}
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	if _, err := s.FindByUsername(in.Username); err == nil {
		return model.User{}, store.Errorf(store.ErrCUserExists, "user.register", "username %s is taken", in.Username)
	} else if !store.IsNotFound(err) {
		return model.User{}, err
	}

	doc, err := s.store.AppendDocument(store.CollectionUsers, store.Document{
		"username":     in.Username,
		"email":        in.Email,
		"passwordHash": string(hash),
		"role":         in.Role,
	})
	if err != nil {
		return model.User{}, err
	}
	Logger.Infof("registered user %s (%s)", in.Username, in.Role)
	return decode(doc)
}

// Authenticate checks a username and password and returns the user.
// Unknown users and wrong passwords both fail with ErrCInvalidCredentials.
func (s *Service) Authenticate(username, password string) (model.User, error) {
	doc, err := s.findDoc(username)
	if store.IsNotFound(err) {
		return model.User{}, store.NewError(store.ErrCInvalidCredentials, "user.authenticate", "invalid username or password")
	}
	if err != nil {
		return model.User{}, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(doc.String("passwordHash")), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return model.User{}, store.NewError(store.ErrCInvalidCredentials, "user.authenticate", "invalid username or password")
	}
	if err != nil {
		return model.User{}, &store.Error{Code: store.ErrCCorruptData, Op: "user.authenticate", Collection: store.CollectionUsers, ID: doc.ID(), Msg: "stored password hash is invalid", Err: err}
	}
	return decode(doc)
}

// Get returns the user with the given id
func (s *Service) Get(id string) (model.User, error) {
	doc, err := s.store.FindByID(store.CollectionUsers, id)
	if err != nil {
		return model.User{}, err
	}
	return decode(doc)
}

// FindByUsername returns the user with the given username (case insensitive)
func (s *Service) FindByUsername(username string) (model.User, error) {
	doc, err := s.findDoc(username)
	if err != nil {
		return model.User{}, err
	}
	return decode(doc)
}

func (s *Service) findDoc(username string) (store.Document, error) {
	username = strings.TrimSpace(username)
	return s.store.FindOne(store.CollectionUsers, func(d store.Document) bool {
		return strings.EqualFold(d.String("username"), username)
	})
}

// decode converts a user document and drops the password hash
func decode(doc store.Document) (model.User, error) {
	u, err := store.Decode[model.User](doc)
	if err != nil {
		return model.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}
