package app

import (
	"fmt"

	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	cryptoService "github.com/splitrx/splitrx/internal/crypto/service"
)

// MasterKey returns the derived symmetric master key. Derivation fails fast on
// missing or weak configuration, so a misconfigured deployment never serves
// traffic.
func (c *Container) MasterKey() (*cryptoDomain.MasterKey, error) {
	var err error
	c.masterKeyInit.Do(func() {
		c.masterKey, err = cryptoDomain.DeriveMasterKey(c.config.MasterSecret, c.config.MasterSecretSalt)
		if err != nil {
			c.initErrors["masterKey"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["masterKey"]; exists {
		return nil, storedErr
	}
	return c.masterKey, nil
}

// Cipher returns the AES-256-GCM cipher keyed with the master key.
func (c *Container) Cipher() (cryptoService.Cipher, error) {
	var err error
	c.cipherInit.Do(func() {
		c.cipher, err = c.initCipher()
		if err != nil {
			c.initErrors["cipher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cipher"]; exists {
		return nil, storedErr
	}
	return c.cipher, nil
}

// Signer returns the RSA signing service.
func (c *Container) Signer() cryptoService.Signer {
	c.signerInit.Do(func() {
		c.signer = cryptoService.NewRSASigner()
	})
	return c.signer
}

// initCipher creates the cipher from the derived master key.
func (c *Container) initCipher() (cryptoService.Cipher, error) {
	masterKey, err := c.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive master key for cipher: %w", err)
	}

	cipher, err := cryptoService.NewAESGCM(masterKey.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher, nil
}
