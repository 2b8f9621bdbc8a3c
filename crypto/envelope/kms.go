package envelope

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/jcarver989/lockbox/retry"
	"github.com/pkg/errors"
)

// encryptionContextKey binds a wrapped key to its algorithm. KMS refuses to
// decrypt if the context differs from the one used to encrypt.
const encryptionContextKey = "lockbox:algorithm"

// KMSKeyWrapper is a KeyWrapper that uses a KMS Customer Master Key as the
// KEK. Throttling and transient KMS failures are retried.
type KMSKeyWrapper struct {
	// The KMS Customer Master Key to use for encryption.
	KeyId string

	// Retrier wraps every KMS call.
	Retrier *retry.Retrier

	kms kmsiface.KMSAPI
}

func NewKMSKeyWrapper(c client.ConfigProvider, keyID string) *KMSKeyWrapper {
	return NewKMSKeyWrapperWithClient(kms.New(c), keyID)
}

// NewKMSKeyWrapperWithClient uses the given KMS client, which is useful for
// tests.
func NewKMSKeyWrapperWithClient(k kmsiface.KMSAPI, keyID string) *KMSKeyWrapper {
	return &KMSKeyWrapper{
		KeyId:   keyID,
		Retrier: retry.NewRetrier("kms", retry.DefaultBackOffOpts, isRetryableKMSError),
		kms:     k,
	}
}

// GenerateKey generates a 256 bit vault key by calling kms.GenerateDataKey.
// The returned WrappedKey must be unwrapped by calling kms.Decrypt.
func (w *KMSKeyWrapper) GenerateKey(ctx context.Context) (EncryptionKey, *WrappedKey, error) {
	var resp *kms.GenerateDataKeyOutput
	err := w.Retrier.Retry(ctx, func() (err error) {
		resp, err = w.kms.GenerateDataKeyWithContext(ctx, &kms.GenerateDataKeyInput{
			KeyId:             aws.String(w.KeyId),
			KeySpec:           aws.String(kms.DataKeySpecAes256),
			EncryptionContext: encryptionContext(XSalsa20Poly1305),
		})
		return err
	})
	if err != nil {
		return EncryptionKey{}, nil, errors.Wrap(err, "kms: generating data key")
	}

	return EncryptionKey{Algorithm: XSalsa20Poly1305, Key: resp.Plaintext},
		&WrappedKey{Algorithm: XSalsa20Poly1305, CipherText: resp.CiphertextBlob},
		nil
}

// WrapKey encrypts key with the KMS CMK.
func (w *KMSKeyWrapper) WrapKey(ctx context.Context, key EncryptionKey) (*WrappedKey, error) {
	var resp *kms.EncryptOutput
	err := w.Retrier.Retry(ctx, func() (err error) {
		resp, err = w.kms.EncryptWithContext(ctx, &kms.EncryptInput{
			KeyId:             aws.String(w.KeyId),
			Plaintext:         key.Key,
			EncryptionContext: encryptionContext(key.Algorithm),
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "kms: encrypting key")
	}
	return &WrappedKey{Algorithm: key.Algorithm, CipherText: resp.CiphertextBlob}, nil
}

// UnwrapKey decrypts a key that was wrapped with the KMS CMK. An
// InvalidCiphertextException is reported as ErrAuthentication.
func (w *KMSKeyWrapper) UnwrapKey(ctx context.Context, wrapped *WrappedKey) (EncryptionKey, error) {
	var resp *kms.DecryptOutput
	err := w.Retrier.Retry(ctx, func() (err error) {
		resp, err = w.kms.DecryptWithContext(ctx, &kms.DecryptInput{
			CiphertextBlob:    wrapped.CipherText,
			EncryptionContext: encryptionContext(wrapped.Algorithm),
		})
		return err
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == kms.ErrCodeInvalidCiphertextException {
		return EncryptionKey{}, errors.Wrap(ErrAuthentication, aerr.Message())
	}
	if err != nil {
		return EncryptionKey{}, errors.Wrap(err, "kms: decrypting key")
	}
	return EncryptionKey{Algorithm: wrapped.Algorithm, Key: resp.Plaintext}, nil
}

func encryptionContext(alg Algorithm) map[string]*string {
	return map[string]*string{encryptionContextKey: aws.String(string(alg))}
}

func isRetryableKMSError(err error) bool {
	if request.IsErrorThrottle(err) || request.IsErrorRetryable(err) {
		return true
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case kms.ErrCodeInternalException, kms.ErrCodeDependencyTimeoutException:
			return true
		}
	}
	return false
}
